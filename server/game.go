package main

import (
	"fmt"
	"log"
	"sync"
	"time"

	"arena-server/arena"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	BroadcastRate        = 30 // frame broadcasts per second
	maxMembersPerSession = 16
)

// Broadcaster sends messages to one connected client
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// Member is one client attached to a session
type Member struct {
	ID          string
	Name        string
	Role        string
	AuthPilotID int64 // 0 = guest
}

// RunStats counts what the current pilot achieved since the run started
type RunStats struct {
	Kills     int
	Shots     int
	Melee     int
	StartTick uint64
}

// Game drives one arena.World on a fixed ticker. The first member pilots;
// everyone else spectates until the pilot leaves.
type Game struct {
	mu        sync.RWMutex
	sessionID string
	cfg       arena.Config
	world     *arena.World
	members   map[string]*Member
	order     []string // join order, used for pilot promotion
	clients   map[string]Broadcaster
	pilot     string
	input     arena.Input
	run       RunStats

	broadcastEvery uint64
	db             *DB
	analytics      *Analytics

	stop     chan struct{}
	stopOnce sync.Once
	stopped  bool
}

// NewGame builds a world for the session. db and analytics may be nil.
func NewGame(sessionID string, cfg arena.Config, db *DB, analytics *Analytics) (*Game, error) {
	g := &Game{
		sessionID: sessionID,
		cfg:       cfg,
		members:   make(map[string]*Member),
		clients:   make(map[string]Broadcaster),
		db:        db,
		analytics: analytics,
		stop:      make(chan struct{}),
	}
	g.broadcastEvery = uint64(cfg.TickRate / BroadcastRate)
	if g.broadcastEvery == 0 {
		g.broadcastEvery = 1
	}
	world, err := arena.NewWorld(cfg, nil, arena.WithRenderer(g))
	if err != nil {
		return nil, fmt.Errorf("build world: %w", err)
	}
	g.world = world
	return g, nil
}

// Run starts the game loop
func (g *Game) Run() {
	ticker := time.NewTicker(time.Second / time.Duration(g.cfg.TickRate))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.update()
		case <-g.stop:
			return
		}
	}
}

// Stop terminates the game loop and closes the current run
func (g *Game) Stop() {
	g.stopOnce.Do(func() {
		close(g.stop)
		g.mu.Lock()
		g.endRun()
		g.stopped = true
		g.mu.Unlock()
	})
}

// AddPlayer attaches a member. Returns nil when the session is full.
func (g *Game) AddPlayer(name string, authPilotID int64) *Member {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.members) >= maxMembersPerSession {
		return nil
	}
	m := &Member{
		ID:          GenerateID(4),
		Name:        name,
		Role:        RoleSpectator,
		AuthPilotID: authPilotID,
	}
	g.members[m.ID] = m
	g.order = append(g.order, m.ID)
	if g.pilot == "" {
		g.promote(m)
	}
	return m
}

// RemovePlayer detaches a member. A departing pilot's run is recorded and
// the longest-waiting spectator takes over.
func (g *Game) RemovePlayer(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.members[id]; !ok {
		return
	}
	if g.pilot == id {
		g.endRun()
		g.pilot = ""
		g.input = arena.Input{}
	}
	delete(g.members, id)
	delete(g.clients, id)
	for i, mid := range g.order {
		if mid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}

	if g.pilot == "" && len(g.order) > 0 && !g.stopped {
		next := g.members[g.order[0]]
		g.promote(next)
		if c, ok := g.clients[next.ID]; ok {
			c.SendJSON(Envelope{T: MsgPilot, Data: WelcomeMsg{ID: next.ID, Role: RolePilot, Arena: g.cfg.ArenaSize}})
		}
	}
}

// promote makes m the pilot and starts a fresh run. Caller holds g.mu.
func (g *Game) promote(m *Member) {
	m.Role = RolePilot
	g.pilot = m.ID
	g.input = arena.Input{}
	g.run = RunStats{StartTick: g.world.Tick()}
}

// SetClient associates a broadcaster with a member
func (g *Game) SetClient(memberID string, client Broadcaster) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.members[memberID]; ok {
		g.clients[memberID] = client
	}
}

// SetAuth links a member to an account after they authenticated mid-session
func (g *Game) SetAuth(memberID string, authPilotID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.members[memberID]; ok {
		m.AuthPilotID = authPilotID
	}
}

// HandleInput stores the pilot's held keys; spectator input is ignored
func (g *Game) HandleInput(memberID string, input ClientInput) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if memberID != g.pilot {
		return
	}
	half := g.cfg.HalfSize()
	input.AX = Clamp(input.AX, -half, half)
	input.AY = Clamp(input.AY, -half, half)
	g.input = input.ToArena()
}

// Reset puts the pilot back at the origin. A full reset records the run,
// rebuilds the arena and starts a new run. Only the pilot may reset.
func (g *Game) Reset(memberID string, full bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if memberID == "" || memberID != g.pilot {
		return false
	}
	if !full {
		g.world.Reset()
		return true
	}
	summary := g.endRun()
	if c, ok := g.clients[g.pilot]; ok {
		c.SendJSON(Envelope{T: MsgRunOver, Data: summary})
	}
	g.world.RebuildArena()
	g.input = arena.Input{}
	g.run = RunStats{StartTick: g.world.Tick()}
	return true
}

// endRun persists the current pilot's run when they are signed in. Caller
// holds g.mu.
func (g *Game) endRun() RunOverMsg {
	summary := RunOverMsg{
		Kills:    g.run.Kills,
		Shots:    g.run.Shots,
		Melee:    g.run.Melee,
		Duration: float64(g.world.Tick()-g.run.StartTick) * g.cfg.Dt(),
	}
	m, ok := g.members[g.pilot]
	if !ok || m.AuthPilotID == 0 || g.stopped {
		return summary
	}
	run := RunRow{
		PilotID:   m.AuthPilotID,
		SessionID: g.sessionID,
		Kills:     summary.Kills,
		Shots:     summary.Shots,
		Melee:     summary.Melee,
		Duration:  summary.Duration,
	}
	g.analytics.Track(EvtRunEnd, m.AuthPilotID, g.sessionID,
		fmt.Sprintf(`{"kills":%d,"shots":%d,"duration":%.2f}`, run.Kills, run.Shots, run.Duration))
	if g.db == nil {
		return summary
	}
	if _, err := g.db.RecordRun(run); err != nil {
		log.Printf("record run for pilot %d: %v", m.AuthPilotID, err)
		return summary
	}
	summary.Achievements = CheckAchievements(g.db, m.AuthPilotID, run)
	return summary
}

// PlayerCount returns the number of members, pilot included
func (g *Game) PlayerCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

// HasPlayer reports whether the member is attached
func (g *Game) HasPlayer(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.members[id]
	return ok
}

// Pilot returns the id of the piloting member, "" if none
func (g *Game) Pilot() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pilot
}

// Stats returns the current run
func (g *Game) Stats() RunStats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.run
}

// update runs one game tick
func (g *Game) update() {
	g.mu.Lock()
	defer g.mu.Unlock()

	report := g.world.Step(g.input)
	if report.Bullet != 0 {
		g.run.Shots++
	}
	if report.Melee {
		g.run.Melee++
	}

	var authID int64
	if m, ok := g.members[g.pilot]; ok {
		authID = m.AuthPilotID
	}
	for _, h := range report.Hits {
		if !h.Killed {
			continue
		}
		g.run.Kills++
		g.broadcastMsg(Envelope{T: MsgKill, Data: KillMsg{
			EnemyID: uint64(h.Enemy),
			Melee:   h.Bullet == 0,
			Kills:   g.run.Kills,
		}})
		g.analytics.Track(EvtEnemyKill, authID, g.sessionID, "")
	}
}

// Render implements arena.Renderer. It runs inside update with g.mu held
// and sends every broadcastEvery-th frame as a binary msgpack message.
func (g *Game) Render(f arena.Frame) {
	if f.Tick%g.broadcastEvery != 0 || len(g.clients) == 0 {
		return
	}
	state := NewGameState(f, g.run.Kills)
	data, err := msgpack.Marshal(&state)
	if err != nil {
		log.Printf("encode frame: %v", err)
		return
	}
	for _, c := range g.clients {
		c.SendBinary(data)
	}
}

// broadcastMsg sends a message to all clients in the session
func (g *Game) broadcastMsg(msg Envelope) {
	for _, client := range g.clients {
		client.SendJSON(msg)
	}
}
