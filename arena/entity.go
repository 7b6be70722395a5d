package arena

import "github.com/jakecoffman/cp"

// EntityID identifies an entity for its whole lifetime. IDs are never reused
// within a World.
type EntityID uint64

// Entity is the capability set shared by every variant.
type Entity interface {
	ID() EntityID
	Body() BodyHandle
	Category() Category
}

type entityBase struct {
	id   EntityID
	body BodyHandle
	cat  Category
}

func (e *entityBase) ID() EntityID       { return e.id }
func (e *entityBase) Body() BodyHandle   { return e.body }
func (e *entityBase) Category() Category { return e.cat }

// Player is the single user-controlled circle.
type Player struct {
	entityBase
	Radius                float64
	MaxSpeed              float64
	FireCooldownRemaining float64
}

// Bullet is a one-shot projectile.
type Bullet struct {
	entityBase
	SpawnPos cp.Vector
	Damage   int
	Speed    float64
	spent    bool // already resolved against a wall or enemy this tick
}

// Enemy pursues the player until its health runs out.
type Enemy struct {
	entityBase
	HP    int
	MaxHP int
	Speed float64
}

// TakeDamage reduces HP and returns true if the enemy just died. A dead
// enemy does not report dying again.
func (e *Enemy) TakeDamage(dmg int) bool {
	if e.HP <= 0 {
		return false
	}
	e.HP -= dmg
	return e.HP <= 0
}

// Alive reports whether the enemy still has health.
func (e *Enemy) Alive() bool {
	return e.HP > 0
}

// HealthRatio is HP/MaxHP clamped to [0,1].
func (e *Enemy) HealthRatio() float64 {
	if e.MaxHP <= 0 || e.HP <= 0 {
		return 0
	}
	if e.HP >= e.MaxHP {
		return 1
	}
	return float64(e.HP) / float64(e.MaxHP)
}

// WallSide names the arena edge a wall sits on.
type WallSide uint8

const (
	WallLeft WallSide = iota
	WallRight
	WallTop
	WallBottom
)

// Wall is a static arena edge.
type Wall struct {
	entityBase
	Side WallSide
}

// SpawnPoint is a fixed enemy spawn location.
type SpawnPoint struct {
	Position cp.Vector
}
