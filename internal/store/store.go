// Package store provides the durable state store for scenebridge.
//
// Everything the bridge must remember across a host restart (a "domain
// reload") lives here. The contract is deliberately small: string keys,
// string values, no multi-key transactions. Callers order their writes so
// that a restart between any two of them leaves a self-consistent record.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// KV is the durable key/value contract. Implementations must survive a full
// process restart; the bridge treats the store as the only source of truth
// when resuming interrupted work.
type KV interface {
	// Set writes a key. The write must be visible after a restart.
	Set(key, value string) error

	// Get reads a key, returning fallback when the key is absent.
	Get(key, fallback string) (string, error)

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(key string) error
}

// Outcome records the terminal result of one asynchronous task for the
// audit trail.
type Outcome struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Result    string    `json:"result"`
	Detail    string    `json:"detail"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Auditor records terminal async-task outcomes.
type Auditor interface {
	RecordOutcome(kind, result, detail string, startedAt, endedAt time.Time) error
}

// Store is the SQLite-backed durable store.
type Store struct {
	db *sql.DB
}

// New opens (creating if necessary) the store at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL so a crash mid-write never corrupts previously committed keys.
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		result TEXT NOT NULL,
		detail TEXT,
		started_at DATETIME NOT NULL,
		ended_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_kind ON outcomes(kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Set writes or replaces a key.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Get reads a key, returning fallback when the key is absent.
func (s *Store) Get(key, fallback string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Delete removes a key.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// RecordOutcome appends a terminal task outcome to the audit trail.
func (s *Store) RecordOutcome(kind, result, detail string, startedAt, endedAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO outcomes (kind, result, detail, started_at, ended_at) VALUES (?, ?, ?, ?, ?)`,
		kind, result, detail, startedAt.UTC(), endedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// ListOutcomes returns the most recent task outcomes, newest first.
func (s *Store) ListOutcomes(limit int) ([]Outcome, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, kind, result, detail, started_at, ended_at FROM outcomes ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		var o Outcome
		var detail sql.NullString
		if err := rows.Scan(&o.ID, &o.Kind, &o.Result, &detail, &o.StartedAt, &o.EndedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if detail.Valid {
			o.Detail = detail.String
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// --- Typed helpers over KV ---

// SetBool writes a boolean key as "1" or "0".
func SetBool(kv KV, key string, value bool) error {
	s := "0"
	if value {
		s = "1"
	}
	return kv.Set(key, s)
}

// GetBool reads a boolean key written by SetBool.
func GetBool(kv KV, key string, fallback bool) (bool, error) {
	def := "0"
	if fallback {
		def = "1"
	}
	v, err := kv.Get(key, def)
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

// SetTime writes a timestamp key in RFC 3339 form with nanoseconds.
func SetTime(kv KV, key string, t time.Time) error {
	return kv.Set(key, t.UTC().Format(time.RFC3339Nano))
}

// GetTime reads a timestamp key. A missing or unparseable value yields the
// zero time without error, so stale-record checks treat it as ancient.
func GetTime(kv KV, key string) (time.Time, error) {
	v, err := kv.Get(key, "")
	if err != nil {
		return time.Time{}, err
	}
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

// SetFloat writes a float key.
func SetFloat(kv KV, key string, value float64) error {
	return kv.Set(key, strconv.FormatFloat(value, 'g', -1, 64))
}

// GetFloat reads a float key written by SetFloat.
func GetFloat(kv KV, key string, fallback float64) (float64, error) {
	v, err := kv.Get(key, "")
	if err != nil {
		return 0, err
	}
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback, nil
	}
	return f, nil
}
