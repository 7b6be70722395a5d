package arena

import (
	"math/rand"
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChipmunkWorld(t *testing.T, cfg Config) (*World, *ChipmunkPhysics) {
	t.Helper()
	p := NewChipmunkPhysics()
	w, err := NewWorld(cfg, p, WithRand(rand.New(rand.NewSource(7))))
	require.NoError(t, err)
	return w, p
}

func TestChipmunkDestroyBodyIsIdempotent(t *testing.T) {
	p := NewChipmunkPhysics()
	h := p.CreateBody(
		BodyDef{Kind: BodyDynamic, Position: cp.Vector{X: 1, Y: 2}, FixedRotation: true},
		FixtureDef{Shape: ShapeCircle, Radius: 0.5, Density: 1, Category: CategoryEnemy, Mask: collisionMask(CategoryEnemy)},
	)
	assert.Equal(t, 1, p.BodyCount())
	assert.Equal(t, cp.Vector{X: 1, Y: 2}, p.Position(h))

	p.DestroyBody(h)
	p.DestroyBody(h)
	p.DestroyBody(BodyHandle(42))
	assert.Equal(t, 0, p.BodyCount())
	assert.Equal(t, cp.Vector{}, p.Position(h))
}

func TestChipmunkReportsBulletEnemyContact(t *testing.T) {
	p := NewChipmunkPhysics()
	var contacts []Contact
	p.OnContactBegin(func(c Contact) { contacts = append(contacts, c) })

	enemy := p.CreateBody(
		BodyDef{Kind: BodyDynamic, Position: cp.Vector{X: 2}, FixedRotation: true},
		FixtureDef{Shape: ShapeCircle, Radius: 0.5, Density: 1, Category: CategoryEnemy, Mask: collisionMask(CategoryEnemy)},
	)
	bullet := p.CreateBody(
		BodyDef{Kind: BodyDynamic, FixedRotation: true},
		FixtureDef{Shape: ShapeCircle, Radius: 0.1, Density: 1, Category: CategoryBullet, Mask: collisionMask(CategoryBullet)},
	)
	p.SetVelocity(bullet, cp.Vector{X: 30})

	for i := 0; i < 10 && len(contacts) == 0; i++ {
		p.Step(1.0 / 60)
	}
	require.NotEmpty(t, contacts)
	c := contacts[0]
	assert.ElementsMatch(t, []BodyHandle{enemy, bullet}, []BodyHandle{c.A, c.B})
	assert.ElementsMatch(t, []Category{CategoryEnemy, CategoryBullet}, []Category{c.CatA, c.CatB})
}

func TestChipmunkBulletsIgnoreThePlayer(t *testing.T) {
	p := NewChipmunkPhysics()
	var contacts []Contact
	p.OnContactBegin(func(c Contact) { contacts = append(contacts, c) })

	p.CreateBody(
		BodyDef{Kind: BodyDynamic, Position: cp.Vector{X: 1}, FixedRotation: true},
		FixtureDef{Shape: ShapeCircle, Radius: 0.25, Density: 0.5, Category: CategoryPlayer, Mask: collisionMask(CategoryPlayer)},
	)
	bullet := p.CreateBody(
		BodyDef{Kind: BodyDynamic, FixedRotation: true},
		FixtureDef{Shape: ShapeCircle, Radius: 0.1, Density: 1, Category: CategoryBullet, Mask: collisionMask(CategoryBullet)},
	)
	p.SetVelocity(bullet, cp.Vector{X: 30})
	for i := 0; i < 10; i++ {
		p.Step(1.0 / 60)
	}
	assert.Empty(t, contacts)
	assert.Greater(t, p.Position(bullet).X, 1.0, "bullet passes straight through")
}

func TestChipmunkDestroyDuringStepPanics(t *testing.T) {
	p := NewChipmunkPhysics()
	a := p.CreateBody(
		BodyDef{Kind: BodyDynamic, FixedRotation: true},
		FixtureDef{Shape: ShapeCircle, Radius: 0.5, Density: 1, Category: CategoryEnemy, Mask: collisionMask(CategoryEnemy)},
	)
	p.CreateBody(
		BodyDef{Kind: BodyDynamic, Position: cp.Vector{X: 0.5}, FixedRotation: true},
		FixtureDef{Shape: ShapeCircle, Radius: 0.5, Density: 1, Category: CategoryEnemy, Mask: collisionMask(CategoryEnemy)},
	)
	p.OnContactBegin(func(Contact) { p.DestroyBody(a) })
	assert.Panics(t, func() { p.Step(1.0 / 60) })
}

func TestChipmunkDirectMovement(t *testing.T) {
	w, _ := newChipmunkWorld(t, testConfig())
	for i := 0; i < 60; i++ {
		w.Step(Input{MoveX: 1})
	}
	pos := w.PlayerPosition()
	assert.InDelta(t, 10, pos.X, 0.05)
	assert.InDelta(t, 0, pos.Y, 1e-6)
}

func TestChipmunkWallStopsBullet(t *testing.T) {
	w, p := newChipmunkWorld(t, testConfig())
	b := w.Spawner().TrySpawnBullet(0, cp.Vector{X: 70}, cp.Vector{X: 1})
	require.NotNil(t, b)

	reports := stepUntil(w, Input{}, 60, func(r TickReport) bool { return len(r.Removed) > 0 })
	last := reports[len(reports)-1]
	assert.Equal(t, []EntityID{b.ID()}, last.Removed)
	assert.Empty(t, last.Hits)
	assert.Less(t, len(reports), 20, "the wall, not range pruning, removed the bullet")
	assert.Equal(t, 5, p.BodyCount())
}

func TestChipmunkBulletKillsEnemy(t *testing.T) {
	cfg := testConfig()
	cfg.BulletDamage = 100
	w, p := newChipmunkWorld(t, cfg)
	e := w.Spawner().SpawnEnemy(cp.Vector{X: 5})
	require.NotNil(t, e)

	reports := stepUntil(w, Input{Fire: true, Aim: cp.Vector{X: 5}}, 60, func(r TickReport) bool { return len(r.Kills()) > 0 })
	last := reports[len(reports)-1]
	assert.Equal(t, []EntityID{e.ID()}, last.Kills())
	assert.Equal(t, 0, w.Registry().Count(CategoryEnemy))
	assert.Equal(t, 0, w.Registry().Count(CategoryBullet))
	assert.Equal(t, 5, p.BodyCount())
}

func TestChipmunkRebuildArena(t *testing.T) {
	w, p := newChipmunkWorld(t, testConfig())
	w.Spawner().SpawnEnemy(cp.Vector{X: 10})
	w.Spawner().SpawnEnemy(cp.Vector{X: -10})
	w.Step(Input{Fire: true, Aim: cp.Vector{Y: 1}})
	require.Equal(t, 8, p.BodyCount())

	w.RebuildArena()
	assert.Equal(t, 5, p.BodyCount())

	for i := 0; i < 10; i++ {
		w.Step(Input{MoveY: 1})
	}
	assert.Greater(t, w.PlayerPosition().Y, 0.0)
}

func TestChipmunkTagsLiveOnShapes(t *testing.T) {
	p := NewChipmunkPhysics()
	h := p.CreateBody(
		BodyDef{Kind: BodyDynamic},
		FixtureDef{Shape: ShapeCircle, Radius: 0.1, Density: 1, Category: CategoryBullet, Mask: collisionMask(CategoryBullet)},
	)
	body := p.bodies[h]
	require.NotNil(t, body)
	assert.Nil(t, body.UserData)

	var tags []fixtureTag
	body.EachShape(func(s *cp.Shape) { tags = append(tags, s.UserData.(fixtureTag)) })
	assert.Equal(t, []fixtureTag{{handle: h, category: CategoryBullet}}, tags)
}
