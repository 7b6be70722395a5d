package arena

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MovementPolicy selects how directional input turns into player motion.
type MovementPolicy string

const (
	// MovementDirect sets the velocity every tick; each held axis contributes
	// ±PlayerSpeed, so diagonals are √2 faster.
	MovementDirect MovementPolicy = "direct"
	// MovementForce applies a force per held axis and clamps the resulting
	// speed to MaxSpeed.
	MovementForce MovementPolicy = "force"
)

// Config holds every tuning constant of a World. It is fixed once the world
// is built.
type Config struct {
	TickRate int `yaml:"tickRate"` // physics ticks per second

	ArenaSize     float64 `yaml:"arenaSize"`     // side of the square arena, centered on the origin
	WallThickness float64 `yaml:"wallThickness"` // half thickness of each edge wall
	BoundsMargin  float64 `yaml:"boundsMargin"`  // bullets further out than the walls by this are pruned

	Movement          MovementPolicy `yaml:"movement"`
	PlayerRadius      float64        `yaml:"playerRadius"`
	PlayerDensity     float64        `yaml:"playerDensity"`
	PlayerFriction    float64        `yaml:"playerFriction"`
	PlayerRestitution float64        `yaml:"playerRestitution"`
	PlayerSpeed       float64        `yaml:"playerSpeed"` // per-axis speed for MovementDirect
	MoveForce         float64        `yaml:"moveForce"`   // per-axis force for MovementForce
	MaxSpeed          float64        `yaml:"maxSpeed"`    // speed clamp for MovementForce

	BulletRadius   float64 `yaml:"bulletRadius"`
	BulletSpeed    float64 `yaml:"bulletSpeed"`
	BulletDamage   int     `yaml:"bulletDamage"`
	BulletMaxRange float64 `yaml:"bulletMaxRange"`
	BulletMargin   float64 `yaml:"bulletMargin"` // extra gap between player and a fresh bullet
	FireInterval   float64 `yaml:"fireInterval"` // seconds between shots
	MeleeDamage    int     `yaml:"meleeDamage"`

	EnemyRadius  float64 `yaml:"enemyRadius"`
	EnemySpeed   float64 `yaml:"enemySpeed"`
	EnemyMaxHP   int     `yaml:"enemyMaxHP"`
	EnemyDensity float64 `yaml:"enemyDensity"`
	MaxEnemies   int     `yaml:"maxEnemies"`
	SpawnChance  float64 `yaml:"spawnChance"` // per-tick enemy spawn probability
}

// DefaultConfig returns the stock tuning: a 150 unit arena and a 0.25 radius
// player.
func DefaultConfig() Config {
	return Config{
		TickRate: 60,

		ArenaSize:     150,
		WallThickness: 1,
		BoundsMargin:  2,

		Movement:          MovementDirect,
		PlayerRadius:      0.25,
		PlayerDensity:     0.5,
		PlayerFriction:    0,
		PlayerRestitution: 0.5,
		PlayerSpeed:       10,
		MoveForce:         10,
		MaxSpeed:          20,

		BulletRadius:   0.1,
		BulletSpeed:    30,
		BulletDamage:   50,
		BulletMaxRange: 60,
		BulletMargin:   0.05,
		FireInterval:   0.2,
		MeleeDamage:    25,

		EnemyRadius:  0.5,
		EnemySpeed:   4,
		EnemyMaxHP:   100,
		EnemyDensity: 1,
		MaxEnemies:   12,
		SpawnChance:  0.02,
	}
}

// Dt is the fixed physics step in seconds.
func (c Config) Dt() float64 {
	return 1.0 / float64(c.TickRate)
}

// HalfSize is the distance from the origin to each wall's center line.
func (c Config) HalfSize() float64 {
	return c.ArenaSize / 2
}

// MeleeRange is the center distance at which a fire action becomes a melee hit.
func (c Config) MeleeRange() float64 {
	return c.PlayerRadius + c.EnemyRadius
}

// Validate reports the first tuning value that would break the simulation.
func (c Config) Validate() error {
	switch {
	case c.TickRate <= 0:
		return fmt.Errorf("tickRate must be > 0, got %d", c.TickRate)
	case c.ArenaSize <= 0:
		return fmt.Errorf("arenaSize must be > 0, got %g", c.ArenaSize)
	case c.WallThickness <= 0:
		return fmt.Errorf("wallThickness must be > 0, got %g", c.WallThickness)
	case c.PlayerRadius <= 0 || c.BulletRadius <= 0 || c.EnemyRadius <= 0:
		return errors.New("entity radii must be > 0")
	case c.Movement != MovementDirect && c.Movement != MovementForce:
		return fmt.Errorf("unknown movement policy %q", c.Movement)
	case c.MaxEnemies < 0:
		return fmt.Errorf("maxEnemies must be >= 0, got %d", c.MaxEnemies)
	case c.SpawnChance < 0 || c.SpawnChance > 1:
		return fmt.Errorf("spawnChance must be in [0,1], got %g", c.SpawnChance)
	case c.EnemyMaxHP <= 0:
		return fmt.Errorf("enemyMaxHP must be > 0, got %d", c.EnemyMaxHP)
	case c.FireInterval < 0:
		return fmt.Errorf("fireInterval must be >= 0, got %g", c.FireInterval)
	case c.BulletMaxRange <= 0:
		return fmt.Errorf("bulletMaxRange must be > 0, got %g", c.BulletMaxRange)
	case c.BulletDamage < 0 || c.MeleeDamage < 0:
		return fmt.Errorf("damage must be >= 0, got bullet %d melee %d", c.BulletDamage, c.MeleeDamage)
	case c.PlayerSpeed < 0 || c.EnemySpeed < 0 || c.BulletSpeed < 0:
		return errors.New("speeds must be >= 0")
	case c.MaxSpeed <= 0:
		return fmt.Errorf("maxSpeed must be > 0, got %g", c.MaxSpeed)
	}
	return nil
}

// LoadConfig reads a YAML tuning file on top of DefaultConfig. Keys missing
// from the file keep their default value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read arena config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse arena config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid arena config: %w", err)
	}
	return cfg, nil
}
