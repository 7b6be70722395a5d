package arena

import (
	"math"
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectMovementSetsAxisVelocity(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())

	w.Step(Input{MoveX: 1, MoveY: 1})
	v := w.PlayerVelocity()
	assert.InDelta(t, 10, v.X, 1e-9)
	assert.InDelta(t, 10, v.Y, 1e-9)

	w.Step(Input{MoveX: -1})
	v = w.PlayerVelocity()
	assert.InDelta(t, -10, v.X, 1e-9)
	assert.InDelta(t, 0, v.Y, 1e-9)

	// no keys held stops the player dead
	w.Step(Input{})
	assert.Equal(t, cp.Vector{}, w.PlayerVelocity())
}

func TestDirectMovementClampsAxisInput(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	w.Step(Input{MoveX: 5, MoveY: -3})
	v := w.PlayerVelocity()
	assert.InDelta(t, 10, v.X, 1e-9)
	assert.InDelta(t, -10, v.Y, 1e-9)
}

func TestDirectMovementIntegratesPosition(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	for i := 0; i < 60; i++ {
		w.Step(Input{MoveY: 1})
	}
	pos := w.PlayerPosition()
	assert.InDelta(t, 0, pos.X, 1e-9)
	assert.InDelta(t, 10, pos.Y, 1e-6)
}

func TestForceMovementNeverExceedsMaxSpeed(t *testing.T) {
	cfg := testConfig()
	cfg.Movement = MovementForce
	w, _ := newTestWorld(t, cfg)

	for i := 0; i < 120; i++ {
		w.Step(Input{MoveX: 1, MoveY: 1})
		require.LessOrEqual(t, w.PlayerVelocity().Length(), cfg.MaxSpeed+1e-9, "tick %d", i+1)
	}
	assert.InDelta(t, cfg.MaxSpeed, w.PlayerVelocity().Length(), 1e-6)

	v := w.PlayerVelocity()
	assert.InDelta(t, v.X, v.Y, 1e-9, "diagonal force keeps a 45 degree heading")
}

func TestForceMovementCoastsWithoutInput(t *testing.T) {
	cfg := testConfig()
	cfg.Movement = MovementForce
	w, _ := newTestWorld(t, cfg)

	for i := 0; i < 10; i++ {
		w.Step(Input{MoveX: 1})
	}
	before := w.PlayerVelocity()
	require.Greater(t, before.X, 0.0)
	w.Step(Input{})
	assert.Equal(t, before, w.PlayerVelocity())
}

func TestAimDirectionFallback(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	c := w.combat

	assert.Equal(t, cp.Vector{X: 1}, c.AimDirection(cp.Vector{}, cp.Vector{}))

	up := c.AimDirection(cp.Vector{X: 2, Y: 2}, cp.Vector{X: 2, Y: 7})
	assert.InDelta(t, 0, up.X, 1e-9)
	assert.InDelta(t, 1, up.Y, 1e-9)

	assert.Equal(t, up, c.AimDirection(cp.Vector{X: 1}, cp.Vector{X: 1}))
	assert.Equal(t, up, c.AimDirection(cp.Vector{}, cp.Vector{X: math.NaN()}))
	assert.Equal(t, up, c.AimDirection(cp.Vector{}, cp.Vector{Y: math.Inf(1)}))
}

func TestFireAtOwnPositionHasFiniteVelocity(t *testing.T) {
	w, fp := newTestWorld(t, testConfig())
	r := w.Step(Input{Fire: true, Aim: cp.Vector{}})
	require.NotZero(t, r.Bullet)

	b := w.Registry().Get(r.Bullet).(*Bullet)
	v := fp.Velocity(b.Body())
	assert.False(t, math.IsNaN(v.X) || math.IsNaN(v.Y))
	assert.InDelta(t, w.Config().BulletSpeed, v.X, 1e-9)
	assert.InDelta(t, 0, v.Y, 1e-9)
}

func TestMeleeTakesPrecedenceOverBullet(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	e := w.Spawner().SpawnEnemy(cp.Vector{X: 0.5})

	r := w.Step(Input{Fire: true, Aim: cp.Vector{X: 10}})
	assert.True(t, r.Melee)
	assert.Zero(t, r.Bullet)
	assert.Equal(t, 0, w.Registry().Count(CategoryBullet))
	require.Len(t, r.Hits, 1)
	assert.Equal(t, Hit{Enemy: e.ID(), Damage: 25}, r.Hits[0])
	assert.Equal(t, 75, e.HP)

	// melee shares the fire cooldown
	r = w.Step(Input{Fire: true, Aim: cp.Vector{X: 10}})
	assert.False(t, r.Melee)
	assert.Equal(t, 75, e.HP)
}

func TestMeleeKillRemovesEnemySameTick(t *testing.T) {
	cfg := testConfig()
	cfg.MeleeDamage = 100
	w, fp := newTestWorld(t, cfg)
	e := w.Spawner().SpawnEnemy(cp.Vector{Y: -0.6})

	r := w.Step(Input{Fire: true})
	assert.True(t, r.Melee)
	assert.Equal(t, []EntityID{e.ID()}, r.Kills())
	assert.Contains(t, r.Removed, e.ID())
	assert.False(t, w.Registry().Alive(e.ID()))
	assert.Contains(t, fp.destroyed, e.Body())
}

func TestEnemyOutsideMeleeRangeGetsShot(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	w.Spawner().SpawnEnemy(cp.Vector{X: 0.8})

	r := w.Step(Input{Fire: true, Aim: cp.Vector{Y: 10}})
	assert.False(t, r.Melee)
	assert.NotZero(t, r.Bullet)
}

func TestFireIsLevelTriggered(t *testing.T) {
	cfg := testConfig()
	cfg.FireInterval = 0.21
	w, _ := newTestWorld(t, cfg)

	var fired []uint64
	for i := 0; i < 60; i++ {
		r := w.Step(Input{Fire: true, Aim: cp.Vector{X: 100}})
		if r.Bullet != 0 {
			fired = append(fired, r.Tick)
		}
	}
	assert.Equal(t, []uint64{1, 14, 27, 40, 53}, fired)
	assert.Equal(t, 5, w.Registry().Count(CategoryBullet))
}

func TestCooldownReportedOnPlayer(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	w.Step(Input{Fire: true, Aim: cp.Vector{X: 1}})
	assert.InDelta(t, w.Config().FireInterval, w.Player().FireCooldownRemaining, 1e-9)

	stepUntil(w, Input{}, 60, func(TickReport) bool { return w.Player().FireCooldownRemaining == 0 })
	assert.Equal(t, 0.0, w.Player().FireCooldownRemaining)
}

func TestEnemiesSteerTowardPlayer(t *testing.T) {
	cfg := testConfig()
	cfg.EnemySpeed = 4
	w, fp := newTestWorld(t, cfg)
	e := w.Spawner().SpawnEnemy(cp.Vector{X: 10})

	w.Step(Input{})
	v := fp.Velocity(e.Body())
	assert.InDelta(t, -4, v.X, 1e-9)
	assert.InDelta(t, 0, v.Y, 1e-9)
	assert.InDelta(t, 10-4.0/60, fp.Position(e.Body()).X, 1e-9)
}

func TestSteerStopsEnemyOnTarget(t *testing.T) {
	cfg := testConfig()
	cfg.EnemySpeed = 4
	w, fp := newTestWorld(t, cfg)
	e := w.Spawner().SpawnEnemy(cp.Vector{X: 3, Y: 3})

	w.combat.Steer(cp.Vector{X: 3, Y: 3})
	assert.Equal(t, cp.Vector{}, fp.Velocity(e.Body()))
}
