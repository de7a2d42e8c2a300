// Package session persists interactive shell sessions as an
// append-only journal of knowledge base mutations, replayable onto a
// fresh engine.
package session

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/cognicore/korlog/pkg/korlog"
	"github.com/cognicore/korlog/pkg/korlog/rulefile"
)

// Kinds of journal events. Declarations, facts, and rules store the
// clause text; retracts store the pattern term.
const (
	KindDeclare = "relation"
	KindFact    = "fact"
	KindRule    = "rule"
	KindRetract = "retract"
)

// Event is one recorded mutation
type Event struct {
	Seq  int64
	Kind string
	Text string
	At   time.Time
}

// Journal stores sessions in a SQLite database
type Journal struct {
	db      *sql.DB
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Open opens the journal database at path with WAL mode enabled,
// creating the schema if needed.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{
		db:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	return j.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	text TEXT NOT NULL,
	at TEXT NOT NULL,
	FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, seq);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Begin starts a new session and returns its ID
func (j *Journal) Begin(ctx context.Context) (string, error) {
	j.mu.Lock()
	id := ulid.MustNew(ulid.Now(), j.entropy).String()
	j.mu.Unlock()

	startedAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := j.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at) VALUES (?, ?)`,
		id, startedAt); err != nil {
		return "", err
	}
	return id, nil
}

// Append records one mutation at the end of a session's journal
func (j *Journal) Append(ctx context.Context, sessionID, kind, text string) error {
	at := time.Now().UTC().Format(time.RFC3339)
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (session_id, kind, text, at) VALUES (?, ?, ?, ?)`,
		sessionID, kind, text, at)
	return err
}

// Events returns a session's journal in append order
func (j *Journal) Events(ctx context.Context, sessionID string) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, kind, text, at FROM events WHERE session_id=? ORDER BY seq`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var at string
		if err := rows.Scan(&ev.Seq, &ev.Kind, &ev.Text, &at); err != nil {
			return nil, err
		}
		ev.At, err = time.Parse(time.RFC3339, at)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Latest returns the most recently started session ID, if any. ULIDs
// sort by creation time.
func (j *Journal) Latest(ctx context.Context) (string, bool, error) {
	var id string
	err := j.db.QueryRowContext(ctx,
		`SELECT id FROM sessions ORDER BY id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Replay applies a session's journal onto an engine in order
func Replay(ctx context.Context, j *Journal, sessionID string, k *korlog.Korlog) error {
	events, err := j.Events(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := apply(k, ev); err != nil {
			return fmt.Errorf("event %d: %w", ev.Seq, err)
		}
	}
	return nil
}

func apply(k *korlog.Korlog, ev Event) error {
	switch ev.Kind {
	case KindDeclare, KindFact, KindRule:
		return k.Consult(ev.Text)
	case KindRetract:
		pattern, err := rulefile.ParseTerm(ev.Text)
		if err != nil {
			return err
		}
		_, err = k.Retract(pattern)
		return err
	}
	return fmt.Errorf("unknown event kind %q", ev.Kind)
}
