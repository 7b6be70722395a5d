package arena

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/stretchr/testify/require"
)

type fakeBody struct {
	def   BodyDef
	fix   FixtureDef
	pos   cp.Vector
	vel   cp.Vector
	force cp.Vector
	mass  float64
}

// fakePhysics integrates positions exactly and reports begin contacts for
// newly overlapping circle/box pairs. It never applies collision response.
type fakePhysics struct {
	bodies    map[BodyHandle]*fakeBody
	next      BodyHandle
	onBegin   func(Contact)
	touching  map[[2]BodyHandle]bool
	stepping  bool
	steps     int
	destroyed []BodyHandle
}

func newFakePhysics() *fakePhysics {
	return &fakePhysics{
		bodies:   make(map[BodyHandle]*fakeBody),
		touching: make(map[[2]BodyHandle]bool),
	}
}

func (f *fakePhysics) CreateBody(def BodyDef, fix FixtureDef) BodyHandle {
	f.next++
	mass := fix.Density * fixtureArea(fix)
	if mass <= 0 {
		mass = 1
	}
	f.bodies[f.next] = &fakeBody{def: def, fix: fix, pos: def.Position, mass: mass}
	return f.next
}

func (f *fakePhysics) DestroyBody(h BodyHandle) {
	if f.stepping {
		panic("fake: DestroyBody during step")
	}
	if _, ok := f.bodies[h]; !ok {
		return
	}
	delete(f.bodies, h)
	f.destroyed = append(f.destroyed, h)
}

func (f *fakePhysics) Position(h BodyHandle) cp.Vector {
	if b, ok := f.bodies[h]; ok {
		return b.pos
	}
	return cp.Vector{}
}

func (f *fakePhysics) SetPosition(h BodyHandle, p cp.Vector) {
	if b, ok := f.bodies[h]; ok {
		b.pos = p
	}
}

func (f *fakePhysics) Velocity(h BodyHandle) cp.Vector {
	if b, ok := f.bodies[h]; ok {
		return b.vel
	}
	return cp.Vector{}
}

func (f *fakePhysics) SetVelocity(h BodyHandle, v cp.Vector) {
	if b, ok := f.bodies[h]; ok {
		b.vel = v
	}
}

func (f *fakePhysics) ApplyForce(h BodyHandle, force cp.Vector) {
	if b, ok := f.bodies[h]; ok {
		b.force = b.force.Add(force)
	}
}

func (f *fakePhysics) OnContactBegin(fn func(Contact)) {
	f.onBegin = fn
}

func (f *fakePhysics) handles() []BodyHandle {
	hs := make([]BodyHandle, 0, len(f.bodies))
	for h := range f.bodies {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

func (f *fakePhysics) Step(dt float64) {
	f.stepping = true
	defer func() { f.stepping = false }()
	f.steps++

	hs := f.handles()
	for _, h := range hs {
		b := f.bodies[h]
		if b.def.Kind == BodyStatic {
			continue
		}
		b.vel = b.vel.Add(b.force.Mult(dt / b.mass))
		b.pos = b.pos.Add(b.vel.Mult(dt))
		b.force = cp.Vector{}
	}

	now := make(map[[2]BodyHandle]bool)
	for i, a := range hs {
		for _, c := range hs[i+1:] {
			ba, bc := f.bodies[a], f.bodies[c]
			if ba.fix.Mask&bc.fix.Category == 0 || bc.fix.Mask&ba.fix.Category == 0 {
				continue
			}
			if !overlaps(ba, bc) {
				continue
			}
			key := [2]BodyHandle{a, c}
			now[key] = true
			if !f.touching[key] && f.onBegin != nil {
				f.onBegin(Contact{A: a, B: c, CatA: ba.fix.Category, CatB: bc.fix.Category})
			}
		}
	}
	f.touching = now
}

func overlaps(a, b *fakeBody) bool {
	switch {
	case a.fix.Shape == ShapeCircle && b.fix.Shape == ShapeCircle:
		return a.pos.Distance(b.pos) <= a.fix.Radius+b.fix.Radius
	case a.fix.Shape == ShapeCircle && b.fix.Shape == ShapeBox:
		return circleBox(a, b)
	case a.fix.Shape == ShapeBox && b.fix.Shape == ShapeCircle:
		return circleBox(b, a)
	}
	return false
}

func circleBox(c, box *fakeBody) bool {
	nx := math.Max(box.pos.X-box.fix.HalfWidth, math.Min(c.pos.X, box.pos.X+box.fix.HalfWidth))
	ny := math.Max(box.pos.Y-box.fix.HalfHeight, math.Min(c.pos.Y, box.pos.Y+box.fix.HalfHeight))
	return c.pos.Distance(cp.Vector{X: nx, Y: ny}) <= c.fix.Radius
}

// testConfig is DefaultConfig with spawning disabled and stationary enemies.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SpawnChance = 0
	cfg.EnemySpeed = 0
	return cfg
}

func newTestWorld(t *testing.T, cfg Config, opts ...Option) (*World, *fakePhysics) {
	t.Helper()
	fp := newFakePhysics()
	opts = append([]Option{WithRand(rand.New(rand.NewSource(12345)))}, opts...)
	w, err := NewWorld(cfg, fp, opts...)
	require.NoError(t, err)
	return w, fp
}

// stepUntil runs ticks until cond holds or limit ticks pass, returning the
// reports of every tick run.
func stepUntil(w *World, in Input, limit int, cond func(TickReport) bool) []TickReport {
	var reports []TickReport
	for i := 0; i < limit; i++ {
		r := w.Step(in)
		reports = append(reports, r)
		if cond(r) {
			break
		}
	}
	return reports
}
