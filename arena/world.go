package arena

import (
	"math"
	"math/rand"

	"github.com/jakecoffman/cp"
)

// Renderer receives the state at the end of every tick. It must not feed
// anything back into the world.
type Renderer interface {
	Render(f Frame)
}

// TickReport summarises what happened during one tick.
type TickReport struct {
	Tick    uint64
	Hits    []Hit      // bullet and melee hits, in resolution order
	Removed []EntityID // entities destroyed this tick
	Bullet  EntityID   // bullet fired this tick, zero if none
	Spawned EntityID   // enemy spawned this tick, zero if none
	Melee   bool
}

// Kills returns the ids of enemies killed this tick.
func (r TickReport) Kills() []EntityID {
	var out []EntityID
	for _, h := range r.Hits {
		if h.Killed {
			out = append(out, h.Enemy)
		}
	}
	return out
}

// World is one simulation instance. It owns the registry, spawner and
// resolver and drives the physics collaborator. A World is not safe for
// concurrent use.
type World struct {
	cfg      Config
	physics  Physics
	registry *Registry
	spawner  *Spawner
	resolver *Resolver
	combat   *Combat
	renderer Renderer

	tick uint64
}

// Option customises a World at construction.
type Option func(*World)

// WithRenderer attaches a renderer that receives every frame.
func WithRenderer(r Renderer) Option {
	return func(w *World) { w.renderer = r }
}

// WithRand overrides the random source used by the spawner.
func WithRand(rng *rand.Rand) Option {
	return func(w *World) {
		w.spawner.rng = rng
	}
}

// NewWorld validates cfg, wires the components around physics and builds the
// arena. A nil physics gets a fresh Chipmunk space.
func NewWorld(cfg Config, physics Physics, opts ...Option) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if physics == nil {
		physics = NewChipmunkPhysics()
	}
	w := &World{
		cfg:      cfg,
		physics:  physics,
		registry: NewRegistry(),
	}
	w.resolver = NewResolver(w.registry)
	w.spawner = NewSpawner(cfg, physics, w.registry, rand.New(rand.NewSource(rand.Int63())))
	w.combat = NewCombat(cfg, physics, w.registry, w.spawner, w.resolver)
	for _, opt := range opts {
		opt(w)
	}

	physics.OnContactBegin(w.resolver.OnContact)
	w.buildArena()
	return w, nil
}

// buildArena creates the four walls and the player at the origin.
func (w *World) buildArena() {
	half := w.cfg.HalfSize()
	t := w.cfg.WallThickness
	walls := []struct {
		side   WallSide
		pos    cp.Vector
		hw, hh float64
	}{
		{WallLeft, cp.Vector{X: -half}, t, half},
		{WallRight, cp.Vector{X: half}, t, half},
		{WallTop, cp.Vector{Y: half}, half, t},
		{WallBottom, cp.Vector{Y: -half}, half, t},
	}
	for _, wall := range walls {
		h := w.physics.CreateBody(
			BodyDef{Kind: BodyStatic, Position: wall.pos},
			FixtureDef{
				Shape:      ShapeBox,
				HalfWidth:  wall.hw,
				HalfHeight: wall.hh,
				Category:   CategoryWall,
				Mask:       collisionMask(CategoryWall),
			},
		)
		w.registry.Add(&Wall{
			entityBase: entityBase{id: w.registry.NextID(), body: h, cat: CategoryWall},
			Side:       wall.side,
		})
	}

	h := w.physics.CreateBody(
		BodyDef{Kind: BodyDynamic, Position: cp.Vector{}, FixedRotation: true},
		FixtureDef{
			Shape:       ShapeCircle,
			Radius:      w.cfg.PlayerRadius,
			Density:     w.cfg.PlayerDensity,
			Friction:    w.cfg.PlayerFriction,
			Restitution: w.cfg.PlayerRestitution,
			Category:    CategoryPlayer,
			Mask:        collisionMask(CategoryPlayer),
		},
	)
	w.registry.Add(&Player{
		entityBase: entityBase{id: w.registry.NextID(), body: h, cat: CategoryPlayer},
		Radius:     w.cfg.PlayerRadius,
		MaxSpeed:   w.cfg.MaxSpeed,
	})
}

// Step runs one fixed tick.
func (w *World) Step(in Input) TickReport {
	w.tick++
	now := w.Now()
	report := TickReport{Tick: w.tick}
	p := w.registry.Player()

	// 1. movement intent
	w.combat.ApplyMovement(p, in)

	// 2. fire: melee wins over ranged when an enemy is in reach
	if in.Fire {
		res := w.combat.Fire(now, p, in.Aim)
		switch {
		case res.Melee != nil:
			report.Melee = true
			report.Hits = append(report.Hits, *res.Melee)
		case res.Bullet != nil:
			report.Bullet = res.Bullet.ID()
		}
	}

	// 3. pursuit
	w.combat.Steer(w.physics.Position(p.Body()))

	// 4. physics; contacts are buffered by the resolver
	w.physics.Step(w.cfg.Dt())
	if w.cfg.Movement == MovementForce {
		w.combat.clampSpeed(p)
	}

	// 5. resolve contacts, then 6. queue bullets past their lifetime; one
	// flush destroys both sets
	report.Hits = append(report.Hits, w.resolver.Drain()...)
	w.pruneBullets()
	report.Removed = append(report.Removed, w.resolver.Flush(w.physics)...)

	// 7. spawn
	if e := w.spawner.TrySpawnEnemy(now); e != nil {
		report.Spawned = e.ID()
	}

	p.FireCooldownRemaining = w.spawner.CooldownRemaining(now)

	// 8. hand off
	if w.renderer != nil {
		w.renderer.Render(w.Frame())
	}
	return report
}

// pruneBullets queues bullets that travelled past max range or left the
// arena.
func (w *World) pruneBullets() {
	limit := w.cfg.HalfSize() + w.cfg.WallThickness + w.cfg.BoundsMargin
	w.registry.ForEach(CategoryBullet, func(e Entity) bool {
		b := e.(*Bullet)
		pos := w.physics.Position(b.Body())
		if pos.Distance(b.SpawnPos) > w.cfg.BulletMaxRange ||
			math.Abs(pos.X) > limit || math.Abs(pos.Y) > limit ||
			math.IsNaN(pos.X) || math.IsNaN(pos.Y) {
			w.resolver.Queue(b.ID())
		}
		return true
	})
}

// Reset puts the player back at the origin at rest. Enemies and bullets are
// left alone.
func (w *World) Reset() {
	p := w.registry.Player()
	w.physics.SetPosition(p.Body(), cp.Vector{})
	w.physics.SetVelocity(p.Body(), cp.Vector{})
}

// RebuildArena destroys every body and builds a fresh arena. Entity ids keep
// increasing across rebuilds.
func (w *World) RebuildArena() {
	for _, cat := range []Category{CategoryBullet, CategoryEnemy, CategoryWall, CategoryPlayer} {
		w.registry.ForEach(cat, func(e Entity) bool {
			w.physics.DestroyBody(e.Body())
			return true
		})
	}
	w.registry.Clear()
	w.resolver.Reset()
	w.spawner.Reset()
	w.combat.Reset()
	w.buildArena()
}

// Now is the simulation time in seconds.
func (w *World) Now() float64 {
	return float64(w.tick) * w.cfg.Dt()
}

// Tick returns the number of completed ticks.
func (w *World) Tick() uint64 {
	return w.tick
}

func (w *World) Config() Config      { return w.cfg }
func (w *World) Registry() *Registry { return w.registry }
func (w *World) Spawner() *Spawner   { return w.spawner }
func (w *World) Physics() Physics    { return w.physics }
func (w *World) Player() *Player     { return w.registry.Player() }

// PlayerPosition reads the player position from the physics body.
func (w *World) PlayerPosition() cp.Vector {
	return w.physics.Position(w.registry.Player().Body())
}

// PlayerVelocity reads the player velocity from the physics body.
func (w *World) PlayerVelocity() cp.Vector {
	return w.physics.Velocity(w.registry.Player().Body())
}
