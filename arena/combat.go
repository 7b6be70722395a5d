package arena

import (
	"math"

	"github.com/jakecoffman/cp"
)

// Input is the player intent for one tick. MoveX and MoveY are the summed
// directional keys, each in {-1, 0, 1}.
type Input struct {
	MoveX, MoveY int
	Fire         bool
	Aim          cp.Vector // target point in world space
}

// FireResult describes what a fire action turned into.
type FireResult struct {
	Bullet *Bullet // set when a bullet was spawned
	Melee  *Hit    // set when the shot resolved as a melee hit
}

// Combat translates intent into velocity, force and fire requests.
type Combat struct {
	cfg      Config
	physics  Physics
	registry *Registry
	spawner  *Spawner
	resolver *Resolver

	lastAim cp.Vector
}

// NewCombat creates a controller aiming along +X.
func NewCombat(cfg Config, physics Physics, registry *Registry, spawner *Spawner, resolver *Resolver) *Combat {
	return &Combat{
		cfg:      cfg,
		physics:  physics,
		registry: registry,
		spawner:  spawner,
		resolver: resolver,
		lastAim:  cp.Vector{X: 1},
	}
}

// ApplyMovement drives the player body according to the movement policy.
func (c *Combat) ApplyMovement(p *Player, in Input) {
	dx := float64(clampAxis(in.MoveX))
	dy := float64(clampAxis(in.MoveY))

	switch c.cfg.Movement {
	case MovementForce:
		if dx != 0 || dy != 0 {
			c.physics.ApplyForce(p.Body(), cp.Vector{X: dx * c.cfg.MoveForce, Y: dy * c.cfg.MoveForce})
		}
		c.clampSpeed(p)
	default:
		c.physics.SetVelocity(p.Body(), cp.Vector{X: dx * c.cfg.PlayerSpeed, Y: dy * c.cfg.PlayerSpeed})
	}
}

// clampSpeed scales the player velocity down to MaxSpeed.
func (c *Combat) clampSpeed(p *Player) {
	v := c.physics.Velocity(p.Body())
	speed := v.Length()
	if speed > p.MaxSpeed && speed > 0 {
		c.physics.SetVelocity(p.Body(), v.Mult(p.MaxSpeed/speed))
	}
}

// AimDirection returns the unit vector from the player toward target. When
// the target sits on the player the last valid direction is reused.
func (c *Combat) AimDirection(from, target cp.Vector) cp.Vector {
	d := target.Sub(from)
	l := d.Length()
	if l < 1e-9 || math.IsNaN(l) || math.IsInf(l, 0) {
		return c.lastAim
	}
	c.lastAim = d.Mult(1 / l)
	return c.lastAim
}

// Fire resolves one fire action at time now. An enemy within melee range
// takes the hit directly and no bullet is spawned. Both paths share the
// cooldown window; nothing happens while it is running.
func (c *Combat) Fire(now float64, p *Player, target cp.Vector) FireResult {
	if !c.spawner.Ready(now) {
		return FireResult{}
	}
	origin := c.physics.Position(p.Body())

	if enemy := c.meleeTarget(origin); enemy != nil {
		c.spawner.MarkShot(now)
		dmg := c.cfg.MeleeDamage
		killed := enemy.TakeDamage(dmg)
		if killed {
			c.resolver.Queue(enemy.ID())
		}
		return FireResult{Melee: &Hit{Enemy: enemy.ID(), Damage: dmg, Killed: killed}}
	}

	dir := c.AimDirection(origin, target)
	return FireResult{Bullet: c.spawner.TrySpawnBullet(now, origin, dir)}
}

// meleeTarget returns the first live enemy, in registry order, whose center
// lies within melee range of pos.
func (c *Combat) meleeTarget(pos cp.Vector) *Enemy {
	reach := c.cfg.MeleeRange()
	var found *Enemy
	c.registry.ForEach(CategoryEnemy, func(e Entity) bool {
		enemy := e.(*Enemy)
		if !enemy.Alive() {
			return true
		}
		if c.physics.Position(enemy.Body()).Distance(pos) <= reach {
			found = enemy
			return false
		}
		return true
	})
	return found
}

// Steer points every enemy at the player with its own speed.
func (c *Combat) Steer(target cp.Vector) {
	c.registry.ForEach(CategoryEnemy, func(e Entity) bool {
		enemy := e.(*Enemy)
		d := target.Sub(c.physics.Position(enemy.Body()))
		l := d.Length()
		if l < 1e-9 {
			c.physics.SetVelocity(enemy.Body(), cp.Vector{})
			return true
		}
		c.physics.SetVelocity(enemy.Body(), d.Mult(enemy.Speed/l))
		return true
	})
}

// Reset restores the default aim direction.
func (c *Combat) Reset() {
	c.lastAim = cp.Vector{X: 1}
}

func clampAxis(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
