package arena

import (
	"math"

	"github.com/jakecoffman/cp"
)

// fixtureTag is stored as the user data of every Chipmunk shape so contact
// callbacks can be mapped back to a body handle without string dispatch.
type fixtureTag struct {
	handle   BodyHandle
	category Category
}

// ChipmunkPhysics implements Physics on a zero-gravity Chipmunk2D space.
type ChipmunkPhysics struct {
	space    *cp.Space
	bodies   map[BodyHandle]*cp.Body
	next     BodyHandle
	stepping bool
	onBegin  func(Contact)
}

// NewChipmunkPhysics creates an empty space with a begin handler registered
// for every category pair.
func NewChipmunkPhysics() *ChipmunkPhysics {
	p := &ChipmunkPhysics{
		space:  cp.NewSpace(),
		bodies: make(map[BodyHandle]*cp.Body),
	}
	p.space.SetGravity(cp.Vector{})

	cats := []Category{CategoryPlayer, CategoryBullet, CategoryEnemy, CategoryWall}
	for i, a := range cats {
		for _, b := range cats[i:] {
			h := p.space.NewCollisionHandler(cp.CollisionType(a), cp.CollisionType(b))
			h.BeginFunc = p.begin
		}
	}
	return p
}

func (p *ChipmunkPhysics) begin(arb *cp.Arbiter, _ *cp.Space, _ interface{}) bool {
	if p.onBegin == nil {
		return true
	}
	a, b := arb.Shapes()
	ta, okA := a.UserData.(fixtureTag)
	tb, okB := b.UserData.(fixtureTag)
	if okA && okB {
		p.onBegin(Contact{A: ta.handle, B: tb.handle, CatA: ta.category, CatB: tb.category})
	}
	return true
}

// CreateBody adds a body and its fixture to the space.
func (p *ChipmunkPhysics) CreateBody(def BodyDef, fix FixtureDef) BodyHandle {
	p.next++
	h := p.next

	var body *cp.Body
	if def.Kind == BodyStatic {
		body = cp.NewStaticBody()
	} else {
		mass := fix.Density * fixtureArea(fix)
		if mass <= 0 {
			mass = 1
		}
		moment := math.Inf(1)
		if !def.FixedRotation {
			moment = fixtureMoment(fix, mass)
		}
		body = cp.NewBody(mass, moment)
	}
	body.SetPosition(def.Position)
	p.space.AddBody(body)

	var shape *cp.Shape
	switch fix.Shape {
	case ShapeBox:
		shape = cp.NewBox(body, fix.HalfWidth*2, fix.HalfHeight*2, 0)
	default:
		shape = cp.NewCircle(body, fix.Radius, cp.Vector{})
	}
	shape.SetFriction(fix.Friction)
	shape.SetElasticity(fix.Restitution)
	shape.SetFilter(cp.NewShapeFilter(0, uint(fix.Category), uint(fix.Mask)))
	shape.SetCollisionType(cp.CollisionType(fix.Category))
	shape.UserData = fixtureTag{handle: h, category: fix.Category}
	p.space.AddShape(shape)

	p.bodies[h] = body
	return h
}

// DestroyBody removes the body and all of its shapes. Unknown handles are
// ignored. Destroying during Step panics: the space is iterating contacts.
func (p *ChipmunkPhysics) DestroyBody(h BodyHandle) {
	if p.stepping {
		panic("arena: DestroyBody called during physics step")
	}
	body, ok := p.bodies[h]
	if !ok {
		return
	}
	var shapes []*cp.Shape
	body.EachShape(func(s *cp.Shape) {
		shapes = append(shapes, s)
	})
	for _, s := range shapes {
		p.space.RemoveShape(s)
	}
	p.space.RemoveBody(body)
	delete(p.bodies, h)
}

func (p *ChipmunkPhysics) Position(h BodyHandle) cp.Vector {
	if body, ok := p.bodies[h]; ok {
		return body.Position()
	}
	return cp.Vector{}
}

func (p *ChipmunkPhysics) SetPosition(h BodyHandle, pos cp.Vector) {
	if body, ok := p.bodies[h]; ok {
		body.SetPosition(pos)
	}
}

func (p *ChipmunkPhysics) Velocity(h BodyHandle) cp.Vector {
	if body, ok := p.bodies[h]; ok {
		return body.Velocity()
	}
	return cp.Vector{}
}

func (p *ChipmunkPhysics) SetVelocity(h BodyHandle, v cp.Vector) {
	if body, ok := p.bodies[h]; ok {
		body.SetVelocity(v.X, v.Y)
	}
}

// ApplyForce pushes through the center of mass; Chipmunk clears forces after
// every step.
func (p *ChipmunkPhysics) ApplyForce(h BodyHandle, f cp.Vector) {
	if body, ok := p.bodies[h]; ok {
		body.ApplyForceAtWorldPoint(f, body.Position())
	}
}

// Step advances the space by dt. Begin-contact callbacks run inside.
func (p *ChipmunkPhysics) Step(dt float64) {
	p.stepping = true
	defer func() { p.stepping = false }()
	p.space.Step(dt)
}

func (p *ChipmunkPhysics) OnContactBegin(fn func(Contact)) {
	p.onBegin = fn
}

// BodyCount returns the number of live bodies, walls included.
func (p *ChipmunkPhysics) BodyCount() int {
	return len(p.bodies)
}

func fixtureArea(fix FixtureDef) float64 {
	if fix.Shape == ShapeBox {
		return 4 * fix.HalfWidth * fix.HalfHeight
	}
	return math.Pi * fix.Radius * fix.Radius
}

func fixtureMoment(fix FixtureDef, mass float64) float64 {
	if fix.Shape == ShapeBox {
		return cp.MomentForBox(mass, fix.HalfWidth*2, fix.HalfHeight*2)
	}
	return cp.MomentForCircle(mass, 0, fix.Radius, cp.Vector{})
}
