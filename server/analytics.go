package main

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

const (
	EvtSessionStart = "session_start"
	EvtSessionEnd   = "session_end"
	EvtEnemyKill    = "enemy_kill"
	EvtRunEnd       = "run_end"
	EvtLogin        = "login"
)

const (
	analyticsQueue      = 1024
	analyticsBatch      = 50
	analyticsFlushEvery = 5 * time.Second
)

// AnalyticsEvent is one row of the analytics_events table. PilotID is 0
// for guests and server events.
type AnalyticsEvent struct {
	Type      string
	PilotID   int64
	SessionID string
	Data      string
	At        time.Time
}

type liveCounts struct {
	sessions, pilots int
}

// Analytics queues events for a background writer that stores them in
// batches, and keeps the live session and pilot gauges. All methods are
// safe on a nil *Analytics.
type Analytics struct {
	db      *DB
	queue   chan AnalyticsEvent
	done    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once

	live atomic.Pointer[liveCounts]
}

// NewAnalytics starts the writer. With a nil db events are discarded.
func NewAnalytics(db *DB) *Analytics {
	a := &Analytics{
		db:    db,
		queue: make(chan AnalyticsEvent, analyticsQueue),
		done:  make(chan struct{}),
	}
	a.live.Store(&liveCounts{})
	a.stopped.Add(1)
	go a.run()
	return a
}

// Track queues an event. It drops the event when the queue is full.
func (a *Analytics) Track(kind string, pilotID int64, sessionID, data string) {
	if a == nil {
		return
	}
	e := AnalyticsEvent{Type: kind, PilotID: pilotID, SessionID: sessionID, Data: data, At: time.Now()}
	select {
	case a.queue <- e:
	default:
	}
}

func (a *Analytics) SetLive(sessions, pilots int) {
	if a == nil {
		return
	}
	a.live.Store(&liveCounts{sessions: sessions, pilots: pilots})
}

// Live returns the gauges last set with SetLive
func (a *Analytics) Live() (sessions, pilots int) {
	if a == nil {
		return 0, 0
	}
	l := a.live.Load()
	return l.sessions, l.pilots
}

// Stop writes whatever is queued and waits for the writer. Track must not
// be called afterwards.
func (a *Analytics) Stop() {
	if a == nil {
		return
	}
	a.once.Do(func() {
		close(a.done)
		a.stopped.Wait()
	})
}

func (a *Analytics) run() {
	defer a.stopped.Done()

	flush := time.NewTicker(analyticsFlushEvery)
	defer flush.Stop()

	pending := make([]AnalyticsEvent, 0, analyticsBatch)
	write := func() {
		a.store(pending)
		pending = pending[:0]
	}

	for {
		select {
		case e := <-a.queue:
			if pending = append(pending, e); len(pending) >= analyticsBatch {
				write()
			}
		case <-flush.C:
			write()
		case <-a.done:
			for n := len(a.queue); n > 0; n-- {
				pending = append(pending, <-a.queue)
			}
			write()
			return
		}
	}
}

func (a *Analytics) store(events []AnalyticsEvent) {
	if a.db == nil || len(events) == 0 {
		return
	}
	if err := a.db.InsertEvents(events); err != nil {
		log.Printf("analytics: dropped %d events: %v", len(events), err)
	}
}

// EventCounts returns per-type event counts over the last days
func (a *Analytics) EventCounts(days int) (map[string]int, error) {
	if a == nil || a.db == nil {
		return map[string]int{}, nil
	}
	return a.db.CountEventsSince(time.Now().AddDate(0, 0, -days))
}

// ActivePilots returns how many signed-in pilots produced an event over the
// last days
func (a *Analytics) ActivePilots(days int) (int, error) {
	if a == nil || a.db == nil {
		return 0, nil
	}
	return a.db.DistinctPilotsSince(time.Now().AddDate(0, 0, -days))
}
