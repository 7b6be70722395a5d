package main

import (
	"sync"
	"time"

	"arena-server/arena"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
	reapInterval  = 10 * time.Second
)

// connLimiter caps WebSocket connections per remote address and in total.
// It is used from HTTP handlers, outside the hub loop.
type connLimiter struct {
	mu     sync.Mutex
	perIP  map[string]int
	total  int
	ipCap  int
	allCap int
}

func newConnLimiter(ipCap, allCap int) *connLimiter {
	return &connLimiter{perIP: make(map[string]int), ipCap: ipCap, allCap: allCap}
}

// Acquire reserves a slot for ip. Every successful Acquire needs a Release.
func (l *connLimiter) Acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.total >= l.allCap || l.perIP[ip] >= l.ipCap {
		return false
	}
	l.perIP[ip]++
	l.total++
	return true
}

func (l *connLimiter) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.perIP[ip] <= 1 {
		delete(l.perIP, ip)
	} else {
		l.perIP[ip]--
	}
	if l.total > 0 {
		l.total--
	}
}

func (l *connLimiter) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// presence maps signed-in pilots to the connection they use. A pilot who
// signs in again elsewhere moves to the newer connection.
type presence struct {
	mu     sync.RWMutex
	online map[int64]*Client
}

func (p *presence) set(pilotID int64, c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[pilotID] = c
}

// clear forgets pilotID only while c still owns it
func (p *presence) clear(pilotID int64, c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.online[pilotID] == c {
		delete(p.online, pilotID)
	}
}

func (p *presence) count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.online)
}

// Hub owns every connected client and routes them to sessions
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	sessions   *SessionManager
	conns      *connLimiter
	pilots     presence

	// nil when running without a database
	db        *DB
	auth      *Auth
	analytics *Analytics

	quit chan struct{}
}

// NewHub creates a Hub whose sessions run cfg. db and analytics may be nil.
func NewHub(cfg arena.Config, db *DB, analytics *Analytics) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		sessions:   NewSessionManager(cfg, db, analytics),
		conns:      newConnLimiter(maxConnsPerIP, maxTotalConns),
		pilots:     presence{online: make(map[int64]*Client)},
		db:         db,
		analytics:  analytics,
		quit:       make(chan struct{}),
	}
	if db != nil {
		h.auth = NewAuth(db)
	}
	return h
}

// Run processes register/unregister events and reaps idle sessions until
// Shutdown.
func (h *Hub) Run() {
	reap := time.NewTicker(reapInterval)
	defer reap.Stop()

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.drop(c)

		case now := <-reap.C:
			h.sessions.Reap(now)

		case <-h.quit:
			return
		}
	}
}

// drop detaches a disconnected client from its session and account
func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	if c.sessionID != "" {
		h.sessions.RemovePlayer(c.sessionID, c.memberID)
	}
	if c.authPilotID != 0 {
		h.pilots.clear(c.authPilotID, c)
	}
}

// Shutdown stops the event loop and every session
func (h *Hub) Shutdown() {
	close(h.quit)
	h.sessions.StopAll()
}

// OnlineCount returns the number of signed-in pilots
func (h *Hub) OnlineCount() int {
	return h.pilots.count()
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
