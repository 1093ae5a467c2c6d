// Package history keeps a sqlite log of connectivity transitions and
// recovery attempts, so outages can be reviewed after the fact.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/entrhq/portalkeeper/pkg/logging"
)

// Kind classifies a history row.
type Kind string

const (
	KindListening         Kind = "listening"
	KindDisconnected      Kind = "disconnected"
	KindConnected         Kind = "connected"
	KindRecoveryStarted   Kind = "recovery_started"
	KindRecoverySucceeded Kind = "recovery_succeeded"
	KindRecoveryFailed    Kind = "recovery_failed"
)

// writeTimeout bounds each insert so a locked database cannot stall the loop.
const writeTimeout = 5 * time.Second

// Event is one recorded row.
type Event struct {
	ID        int64
	At        time.Time
	Kind      Kind
	AttemptID string
	Detail    string
}

// Store persists events. It implements status.Reporter; write failures are
// logged and dropped.
type Store struct {
	db  *sql.DB
	log *logging.Logger
	now func() time.Time

	mu      sync.Mutex
	attempt string
}

// Open opens (and migrates) the database at path.
func Open(ctx context.Context, path string, log *logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if log == nil {
		log = logging.Discard()
	}
	return &Store{db: db, log: log, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS events(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at_ms INTEGER NOT NULL,
			kind TEXT NOT NULL,
			attempt_id TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_events_at ON events(at_ms);
	`)
	if err != nil {
		return fmt.Errorf("migrate events table: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one event.
func (s *Store) Record(ctx context.Context, kind Kind, attemptID, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events(at_ms, kind, attempt_id, detail) VALUES(?, ?, ?, ?)`,
		s.now().UnixMilli(), string(kind), attemptID, detail,
	)
	if err != nil {
		return fmt.Errorf("insert %s event: %w", kind, err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at_ms, kind, attempt_id, detail FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev   Event
			atMs int64
			kind string
		)
		if err := rows.Scan(&ev.ID, &atMs, &kind, &ev.AttemptID, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.At = time.UnixMilli(atMs).UTC()
		ev.Kind = Kind(kind)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *Store) record(kind Kind, attemptID, detail string) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.Record(ctx, kind, attemptID, detail); err != nil {
		s.log.Warnf("history: %v", err)
	}
}

// Listening records a process start.
func (s *Store) Listening() {
	s.record(KindListening, "", "")
}

// Transition records a connected or disconnected event.
func (s *Store) Transition(disconnected bool) {
	if disconnected {
		s.record(KindDisconnected, "", "")
		return
	}
	s.record(KindConnected, "", "")
}

// RecoveryStarted opens a new attempt id and records it.
func (s *Store) RecoveryStarted() {
	s.mu.Lock()
	s.attempt = uuid.New().String()
	attempt := s.attempt
	s.mu.Unlock()

	s.record(KindRecoveryStarted, attempt, "")
}

// RecoverySucceeded records the outcome under the current attempt.
func (s *Store) RecoverySucceeded() {
	s.record(KindRecoverySucceeded, s.currentAttempt(), "")
}

// RecoveryFailed records the error under the current attempt.
func (s *Store) RecoveryFailed(err error) {
	s.record(KindRecoveryFailed, s.currentAttempt(), err.Error())
}

func (s *Store) currentAttempt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}
