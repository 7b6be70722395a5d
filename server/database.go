package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// PilotRow represents an account record
type PilotRow struct {
	ID        int64
	Username  string
	PassHash  string
	CreatedAt time.Time
}

// StatsRow holds lifetime totals of a pilot
type StatsRow struct {
	PilotID   int64
	Runs      int
	Kills     int
	Shots     int
	Melee     int
	BestKills int
	Playtime  float64 // seconds
}

// RunRow is one finished run
type RunRow struct {
	ID        int64
	PilotID   int64
	SessionID string
	Kills     int
	Shots     int
	Melee     int
	Duration  float64
	CreatedAt time.Time
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one connection: SQLite has a single writer and the pragmas below are
	// per connection
	conn.SetMaxOpenConns(1)

	// WAL: commits append to the log instead of rewriting pages
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pilots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS stats (
		pilot_id INTEGER PRIMARY KEY REFERENCES pilots(id),
		runs INTEGER NOT NULL DEFAULT 0,
		kills INTEGER NOT NULL DEFAULT 0,
		shots INTEGER NOT NULL DEFAULT 0,
		melee INTEGER NOT NULL DEFAULT 0,
		best_kills INTEGER NOT NULL DEFAULT 0,
		playtime REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pilot_id INTEGER NOT NULL REFERENCES pilots(id),
		session_id TEXT NOT NULL DEFAULT '',
		kills INTEGER NOT NULL DEFAULT 0,
		shots INTEGER NOT NULL DEFAULT 0,
		melee INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS achievements (
		pilot_id INTEGER NOT NULL REFERENCES pilots(id),
		achievement TEXT NOT NULL,
		unlocked_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (pilot_id, achievement)
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analytics_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		player_id INTEGER,
		session_id TEXT,
		data TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_pilot ON runs(pilot_id);
	CREATE INDEX IF NOT EXISTS idx_events_type ON analytics_events(event_type, created_at);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		log.Printf("DB migration error: %v", err)
	}
	return err
}

// CreatePilot creates an account and its stats row, returning the pilot ID
func (db *DB) CreatePilot(username, passHash string) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec("INSERT INTO pilots (username, pass_hash) VALUES (?, ?)", username, passHash)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec("INSERT INTO stats (pilot_id) VALUES (?)", id); err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// GetPilotByUsername returns nil, nil when no such pilot exists
func (db *DB) GetPilotByUsername(username string) (*PilotRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, pass_hash, created_at FROM pilots WHERE username = ?",
		username,
	)
	p := &PilotRow{}
	err := row.Scan(&p.ID, &p.Username, &p.PassHash, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// UsernameExists checks if a username is taken
func (db *DB) UsernameExists(username string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM pilots WHERE username = ?", username).Scan(&count)
	return count > 0, err
}

// GetStats returns nil, nil for an unknown pilot
func (db *DB) GetStats(pilotID int64) (*StatsRow, error) {
	row := db.conn.QueryRow(
		"SELECT pilot_id, runs, kills, shots, melee, best_kills, playtime FROM stats WHERE pilot_id = ?",
		pilotID,
	)
	s := &StatsRow{}
	err := row.Scan(&s.PilotID, &s.Runs, &s.Kills, &s.Shots, &s.Melee, &s.BestKills, &s.Playtime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// RecordRun stores a finished run and folds it into the pilot's totals in
// one transaction.
func (db *DB) RecordRun(r RunRow) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO runs (pilot_id, session_id, kills, shots, melee, duration)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.PilotID, r.SessionID, r.Kills, r.Shots, r.Melee, r.Duration,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	_, err = tx.Exec(`
		UPDATE stats SET
			runs = runs + 1,
			kills = kills + ?,
			shots = shots + ?,
			melee = melee + ?,
			best_kills = MAX(best_kills, ?),
			playtime = playtime + ?
		WHERE pilot_id = ?`,
		r.Kills, r.Shots, r.Melee, r.Kills, r.Duration, r.PilotID,
	)
	if err != nil {
		return 0, fmt.Errorf("update stats: %w", err)
	}
	return id, tx.Commit()
}

// RecentRuns returns the latest runs of a pilot, newest first
func (db *DB) RecentRuns(pilotID int64, limit int) ([]RunRow, error) {
	rows, err := db.conn.Query(`
		SELECT id, pilot_id, session_id, kills, shots, melee, duration, created_at
		FROM runs WHERE pilot_id = ?
		ORDER BY id DESC LIMIT ?`,
		pilotID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.ID, &r.PilotID, &r.SessionID, &r.Kills, &r.Shots, &r.Melee, &r.Duration, &r.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// LeaderboardEntry represents one row in the leaderboard
type LeaderboardEntry struct {
	Rank      int     `json:"rank"`
	Username  string  `json:"username"`
	BestKills int     `json:"best"`
	Kills     int     `json:"kills"`
	Runs      int     `json:"runs"`
	Accuracy  float64 `json:"accuracy"` // kills per shot
	Playtime  float64 `json:"playtime"`
}

// GetLeaderboard returns top pilots sorted by the given field
func (db *DB) GetLeaderboard(orderBy string, limit int) ([]LeaderboardEntry, error) {
	// Whitelist valid order columns
	validCols := map[string]string{
		"best":     "s.best_kills",
		"kills":    "s.kills",
		"runs":     "s.runs",
		"playtime": "s.playtime",
		"accuracy": "CASE WHEN s.shots > 0 THEN CAST(s.kills AS REAL)/s.shots ELSE 0 END",
	}
	col, ok := validCols[orderBy]
	if !ok {
		col = "s.best_kills"
	}

	query := `SELECT p.username, s.best_kills, s.kills, s.runs, s.shots, s.playtime
		FROM stats s JOIN pilots p ON p.id = s.pilot_id
		WHERE s.runs > 0
		ORDER BY ` + col + ` DESC, p.id ASC LIMIT ?`

	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []LeaderboardEntry{}
	rank := 1
	for rows.Next() {
		var e LeaderboardEntry
		var shots int
		if err := rows.Scan(&e.Username, &e.BestKills, &e.Kills, &e.Runs, &shots, &e.Playtime); err != nil {
			return nil, err
		}
		if shots > 0 {
			e.Accuracy = float64(e.Kills) / float64(shots)
		}
		e.Rank = rank
		rank++
		result = append(result, e)
	}
	return result, rows.Err()
}

// GetAchievements returns the achievement ids a pilot has unlocked
func (db *DB) GetAchievements(pilotID int64) ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT achievement FROM achievements WHERE pilot_id = ? ORDER BY unlocked_at, achievement",
		pilotID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UnlockAchievement reports whether the achievement was newly unlocked
func (db *DB) UnlockAchievement(pilotID int64, id string) (bool, error) {
	res, err := db.conn.Exec(
		"INSERT OR IGNORE INTO achievements (pilot_id, achievement) VALUES (?, ?)",
		pilotID, id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetSetting returns "" when the key is unset
func (db *DB) GetSetting(key string) string {
	var v string
	if err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v); err != nil {
		return ""
	}
	return v
}

// SetSetting upserts a key
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// InsertEvents writes a batch of analytics events in one transaction
func (db *DB) InsertEvents(events []AnalyticsEvent) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO analytics_events (event_type, player_id, session_id, data, created_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		_, err := stmt.Exec(e.Type,
			sql.NullInt64{Int64: e.PilotID, Valid: e.PilotID > 0},
			sql.NullString{String: e.SessionID, Valid: e.SessionID != ""},
			sql.NullString{String: e.Data, Valid: e.Data != ""},
			e.At.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("insert %s: %w", e.Type, err)
		}
	}
	return tx.Commit()
}

// CountEventsSince groups events newer than since by type
func (db *DB) CountEventsSince(since time.Time) (map[string]int, error) {
	rows, err := db.conn.Query(
		"SELECT event_type, COUNT(*) FROM analytics_events WHERE created_at >= ? GROUP BY event_type",
		since.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// DistinctPilotsSince counts signed-in pilots with an event newer than since
func (db *DB) DistinctPilotsSince(since time.Time) (int, error) {
	var n int
	err := db.conn.QueryRow(
		"SELECT COUNT(DISTINCT player_id) FROM analytics_events WHERE player_id IS NOT NULL AND created_at >= ?",
		since.UTC().Format(time.RFC3339),
	).Scan(&n)
	return n, err
}
