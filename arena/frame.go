package arena

// Frame is the read-only view handed to a Renderer after each tick.
type Frame struct {
	Tick    uint64
	Player  PlayerView
	Bullets []BodyView
	Enemies []EnemyView
	Arena   float64 // arena side length
}

// BodyView is a positioned circle.
type BodyView struct {
	ID     EntityID
	X, Y   float64
	Radius float64
}

// PlayerView adds motion and cooldown to the player circle.
type PlayerView struct {
	BodyView
	VX, VY   float64
	Cooldown float64
}

// EnemyView adds health to an enemy circle.
type EnemyView struct {
	BodyView
	HP     int
	MaxHP  int
	Health float64 // HP/MaxHP in [0,1]
}

// Frame snapshots the current state. Enemies already at zero health are
// never included.
func (w *World) Frame() Frame {
	f := Frame{
		Tick:    w.tick,
		Bullets: make([]BodyView, 0, w.registry.Count(CategoryBullet)),
		Enemies: make([]EnemyView, 0, w.registry.Count(CategoryEnemy)),
		Arena:   w.cfg.ArenaSize,
	}

	if p := w.registry.Player(); p != nil {
		pos := w.physics.Position(p.Body())
		vel := w.physics.Velocity(p.Body())
		f.Player = PlayerView{
			BodyView: BodyView{ID: p.ID(), X: pos.X, Y: pos.Y, Radius: p.Radius},
			VX:       vel.X,
			VY:       vel.Y,
			Cooldown: p.FireCooldownRemaining,
		}
	}

	w.registry.ForEach(CategoryBullet, func(e Entity) bool {
		pos := w.physics.Position(e.Body())
		f.Bullets = append(f.Bullets, BodyView{ID: e.ID(), X: pos.X, Y: pos.Y, Radius: w.cfg.BulletRadius})
		return true
	})
	w.registry.ForEach(CategoryEnemy, func(e Entity) bool {
		enemy := e.(*Enemy)
		if !enemy.Alive() {
			return true
		}
		pos := w.physics.Position(e.Body())
		f.Enemies = append(f.Enemies, EnemyView{
			BodyView: BodyView{ID: e.ID(), X: pos.X, Y: pos.Y, Radius: w.cfg.EnemyRadius},
			HP:       enemy.HP,
			MaxHP:    enemy.MaxHP,
			Health:   enemy.HealthRatio(),
		})
		return true
	})
	return f
}
