package arena

import "github.com/jakecoffman/cp"

// Category tags an entity variant for collision filtering. Values are
// distinct bits so they can be OR-ed into masks.
type Category uint

const (
	CategoryPlayer Category = 1 << iota
	CategoryBullet
	CategoryEnemy
	CategoryWall
)

func (c Category) String() string {
	switch c {
	case CategoryPlayer:
		return "player"
	case CategoryBullet:
		return "bullet"
	case CategoryEnemy:
		return "enemy"
	case CategoryWall:
		return "wall"
	}
	return "unknown"
}

// collisionMask lists which categories a fixture of the given category
// collides with. Bullets pass through the player and each other.
func collisionMask(c Category) Category {
	switch c {
	case CategoryPlayer:
		return CategoryEnemy | CategoryWall
	case CategoryBullet:
		return CategoryEnemy | CategoryWall
	case CategoryEnemy:
		return CategoryPlayer | CategoryBullet | CategoryEnemy | CategoryWall
	case CategoryWall:
		return CategoryPlayer | CategoryBullet | CategoryEnemy
	}
	return 0
}

// BodyHandle is an opaque reference into the physics body table.
type BodyHandle uint64

// BodyKind is the motion type of a body.
type BodyKind uint8

const (
	BodyDynamic BodyKind = iota
	BodyStatic
)

// ShapeKind is the collision geometry of a fixture.
type ShapeKind uint8

const (
	ShapeCircle ShapeKind = iota
	ShapeBox
)

// BodyDef describes a body to create.
type BodyDef struct {
	Kind          BodyKind
	Position      cp.Vector
	FixedRotation bool
}

// FixtureDef describes the single collision fixture attached to a body.
type FixtureDef struct {
	Shape       ShapeKind
	Radius      float64 // ShapeCircle
	HalfWidth   float64 // ShapeBox
	HalfHeight  float64 // ShapeBox
	Density     float64
	Friction    float64
	Restitution float64
	Category    Category
	Mask        Category
}

// Contact is a begin-contact notification for two overlapping fixtures.
type Contact struct {
	A, B       BodyHandle
	CatA, CatB Category
}

// Physics is the rigid-body engine the simulation drives. Handles become
// invalid after DestroyBody. Begin-contact callbacks fire synchronously from
// inside Step; the callback must not create or destroy bodies.
type Physics interface {
	CreateBody(def BodyDef, fix FixtureDef) BodyHandle
	DestroyBody(h BodyHandle)

	Position(h BodyHandle) cp.Vector
	SetPosition(h BodyHandle, p cp.Vector)
	Velocity(h BodyHandle) cp.Vector
	SetVelocity(h BodyHandle, v cp.Vector)
	ApplyForce(h BodyHandle, f cp.Vector)

	Step(dt float64)
	OnContactBegin(fn func(Contact))
}
