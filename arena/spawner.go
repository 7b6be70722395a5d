package arena

import (
	"math"
	"math/rand"

	"github.com/jakecoffman/cp"
)

// Spawner maintains the enemy population and the fire cadence.
type Spawner struct {
	cfg      Config
	physics  Physics
	registry *Registry
	rng      *rand.Rand

	points   []SpawnPoint
	lastShot float64
}

// NewSpawner creates a spawner with no shot fired yet.
func NewSpawner(cfg Config, physics Physics, registry *Registry, rng *rand.Rand) *Spawner {
	return &Spawner{
		cfg:      cfg,
		physics:  physics,
		registry: registry,
		rng:      rng,
		points:   spawnPoints(cfg),
		lastShot: math.Inf(-1),
	}
}

// spawnPoints returns the four inner corners and the four edge midpoints,
// kept clear of the walls by two enemy radii.
func spawnPoints(cfg Config) []SpawnPoint {
	d := cfg.HalfSize() - cfg.WallThickness - 2*cfg.EnemyRadius
	if d < 0 {
		d = 0
	}
	return []SpawnPoint{
		{Position: cp.Vector{X: -d, Y: -d}},
		{Position: cp.Vector{X: d, Y: -d}},
		{Position: cp.Vector{X: d, Y: d}},
		{Position: cp.Vector{X: -d, Y: d}},
		{Position: cp.Vector{X: 0, Y: -d}},
		{Position: cp.Vector{X: d, Y: 0}},
		{Position: cp.Vector{X: 0, Y: d}},
		{Position: cp.Vector{X: -d, Y: 0}},
	}
}

// SpawnPoints returns the fixed spawn locations.
func (s *Spawner) SpawnPoints() []SpawnPoint {
	return s.points
}

// TrySpawnEnemy rolls the per-tick spawn chance and, below the population
// cap, creates a full-health enemy at a random spawn point. Returns nil when
// nothing spawned.
func (s *Spawner) TrySpawnEnemy(now float64) *Enemy {
	if s.registry.Count(CategoryEnemy) >= s.cfg.MaxEnemies {
		return nil
	}
	if s.rng.Float64() >= s.cfg.SpawnChance {
		return nil
	}
	p := s.points[s.rng.Intn(len(s.points))]
	return s.SpawnEnemy(p.Position)
}

// SpawnEnemy creates an enemy at pos unless the population cap is reached.
func (s *Spawner) SpawnEnemy(pos cp.Vector) *Enemy {
	if s.registry.Count(CategoryEnemy) >= s.cfg.MaxEnemies {
		return nil
	}
	h := s.physics.CreateBody(
		BodyDef{Kind: BodyDynamic, Position: pos, FixedRotation: true},
		FixtureDef{
			Shape:    ShapeCircle,
			Radius:   s.cfg.EnemyRadius,
			Density:  s.cfg.EnemyDensity,
			Category: CategoryEnemy,
			Mask:     collisionMask(CategoryEnemy),
		},
	)
	e := &Enemy{
		entityBase: entityBase{id: s.registry.NextID(), body: h, cat: CategoryEnemy},
		HP:         s.cfg.EnemyMaxHP,
		MaxHP:      s.cfg.EnemyMaxHP,
		Speed:      s.cfg.EnemySpeed,
	}
	s.registry.Add(e)
	return e
}

// Ready reports whether the fire cooldown window has elapsed.
func (s *Spawner) Ready(now float64) bool {
	return s.lastShot+s.cfg.FireInterval <= now
}

// CooldownRemaining is the time left until Ready, never negative.
func (s *Spawner) CooldownRemaining(now float64) float64 {
	left := s.lastShot + s.cfg.FireInterval - now
	if left < 0 || math.IsInf(left, -1) {
		return 0
	}
	return left
}

// MarkShot starts a new cooldown window at now.
func (s *Spawner) MarkShot(now float64) {
	s.lastShot = now
}

// TrySpawnBullet creates a bullet ahead of origin along dir if the cooldown
// allows. dir must be a unit vector.
func (s *Spawner) TrySpawnBullet(now float64, origin, dir cp.Vector) *Bullet {
	if !s.Ready(now) {
		return nil
	}
	s.MarkShot(now)

	offset := s.cfg.PlayerRadius + s.cfg.BulletRadius + s.cfg.BulletMargin
	pos := origin.Add(dir.Mult(offset))
	h := s.physics.CreateBody(
		BodyDef{Kind: BodyDynamic, Position: pos, FixedRotation: true},
		FixtureDef{
			Shape:    ShapeCircle,
			Radius:   s.cfg.BulletRadius,
			Density:  1,
			Category: CategoryBullet,
			Mask:     collisionMask(CategoryBullet),
		},
	)
	s.physics.SetVelocity(h, dir.Mult(s.cfg.BulletSpeed))

	b := &Bullet{
		entityBase: entityBase{id: s.registry.NextID(), body: h, cat: CategoryBullet},
		SpawnPos:   pos,
		Damage:     s.cfg.BulletDamage,
		Speed:      s.cfg.BulletSpeed,
	}
	s.registry.Add(b)
	return b
}

// Reset forgets the last shot so the next fire is immediately allowed.
func (s *Spawner) Reset() {
	s.lastShot = math.Inf(-1)
}
