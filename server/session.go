package main

import (
	"log"
	"sort"
	"sync"
	"time"

	"arena-server/arena"
	"github.com/google/uuid"
)

const maxSessions = 100

// SessionIdleTimeout is how long a session may sit without members before
// it is closed. Tests shorten it.
var SessionIdleTimeout = 60 * time.Second

// Session represents a game session that clients can join
type Session struct {
	ID        string
	Name      string
	Game      *Game
	CreatedAt time.Time

	emptySince time.Time // zero while members are attached
}

// SessionManager handles creation, lookup and cleanup of sessions
type SessionManager struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	cfg       arena.Config
	db        *DB
	analytics *Analytics
}

// NewSessionManager creates a manager whose sessions use cfg
func NewSessionManager(cfg arena.Config, db *DB, analytics *Analytics) *SessionManager {
	return &SessionManager{
		sessions:  make(map[string]*Session),
		cfg:       cfg,
		db:        db,
		analytics: analytics,
	}
}

// CreateSession creates and starts a session. Returns nil if the limit is
// reached or the world cannot be built.
func (sm *SessionManager) CreateSession(name string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.sessions) >= maxSessions {
		return nil
	}

	id := uuid.NewString()
	game, err := NewGame(id, sm.cfg, sm.db, sm.analytics)
	if err != nil {
		log.Printf("create session: %v", err)
		return nil
	}
	now := time.Now()
	sess := &Session{
		ID:         id,
		Name:       name,
		Game:       game,
		CreatedAt:  now,
		emptySince: now,
	}
	sm.sessions[id] = sess
	go game.Run()

	sm.analytics.Track(EvtSessionStart, 0, id, "")
	sm.analytics.SetLive(len(sm.sessions), sm.pilotsLocked())
	log.Printf("session %s (%q) created", id, name)
	return sess
}

// GetSession returns a session by ID
func (sm *SessionManager) GetSession(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// MarkActive records that a session has members again
func (sm *SessionManager) MarkActive(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sess, ok := sm.sessions[id]; ok {
		sess.emptySince = time.Time{}
	}
	sm.analytics.SetLive(len(sm.sessions), sm.pilotsLocked())
}

// RemovePlayer removes a member from a session. An emptied session is closed
// once it has been idle for SessionIdleTimeout.
func (sm *SessionManager) RemovePlayer(sessionID, memberID string) {
	sm.mu.RLock()
	sess, ok := sm.sessions[sessionID]
	sm.mu.RUnlock()
	if !ok {
		return
	}
	sess.Game.RemovePlayer(memberID)

	if sess.Game.PlayerCount() == 0 {
		sm.mu.Lock()
		if sess.emptySince.IsZero() {
			sess.emptySince = time.Now()
		}
		sm.mu.Unlock()
		time.AfterFunc(SessionIdleTimeout, func() { sm.Reap(time.Now()) })
	}
}

// Reap closes every session that has been empty for at least
// SessionIdleTimeout as of now. It returns the number closed.
func (sm *SessionManager) Reap(now time.Time) int {
	sm.mu.Lock()
	var idle []*Session
	for id, sess := range sm.sessions {
		if sess.emptySince.IsZero() || sess.Game.PlayerCount() > 0 {
			continue
		}
		if now.Sub(sess.emptySince) >= SessionIdleTimeout {
			idle = append(idle, sess)
			delete(sm.sessions, id)
		}
	}
	sm.analytics.SetLive(len(sm.sessions), sm.pilotsLocked())
	sm.mu.Unlock()

	for _, sess := range idle {
		sess.Game.Stop()
		sm.analytics.Track(EvtSessionEnd, 0, sess.ID, "")
		log.Printf("session %s closed after idling", sess.ID)
	}
	return len(idle)
}

// ListSessions returns info about all active sessions, oldest first
func (sm *SessionManager) ListSessions() []SessionInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sessions := make([]*Session, 0, len(sm.sessions))
	for _, sess := range sm.sessions {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	list := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		list = append(list, SessionInfo{
			ID:      sess.ID,
			Name:    sess.Name,
			Players: sess.Game.PlayerCount(),
		})
	}
	return list
}

// Count returns the number of open sessions
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// StopAll closes every session, recording runs still in progress
func (sm *SessionManager) StopAll() {
	sm.mu.Lock()
	sessions := sm.sessions
	sm.sessions = make(map[string]*Session)
	sm.mu.Unlock()

	for _, sess := range sessions {
		sess.Game.Stop()
	}
}

// pilotsLocked counts sessions with a pilot. Caller holds sm.mu.
func (sm *SessionManager) pilotsLocked() int {
	n := 0
	for _, sess := range sm.sessions {
		if sess.Game.Pilot() != "" {
			n++
		}
	}
	return n
}
