// Package history keeps a SQLite log of discovery cycles so the dashboard
// can show when the resource manager moved or went out of reach.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultLimit caps [Store.Recent] when the caller passes a non-positive
// limit.
const DefaultLimit = 100

// Entry is one recorded discovery cycle.
type Entry struct {
	ID        string    `json:"id"`
	CheckedAt time.Time `json:"checked_at"`
	Helper    string    `json:"helper"`
	URL       string    `json:"url"`
	Reachable bool      `json:"reachable"`
	Changed   bool      `json:"changed"`
	LatencyMs int64     `json:"latency_ms"`
	Error     *string   `json:"error"`
}

// Store persists entries in a SQLite database. checked_at is kept as Unix
// nanoseconds so it orders numerically; rowid breaks ties in insertion order.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// a single writer keeps SQLite from returning SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS discoveries (
	id          TEXT PRIMARY KEY,
	checked_at  INTEGER NOT NULL,
	helper      TEXT NOT NULL,
	url         TEXT NOT NULL,
	reachable   INTEGER NOT NULL,
	changed     INTEGER NOT NULL,
	latency_ms  INTEGER NOT NULL,
	error       TEXT
);
CREATE INDEX IF NOT EXISTS idx_discoveries_checked_at ON discoveries (checked_at DESC);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Record inserts e. An empty ID is filled with a new UUID and a zero
// CheckedAt with the current time; the stored entry is returned.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CheckedAt.IsZero() {
		e.CheckedAt = time.Now()
	}
	e.CheckedAt = e.CheckedAt.UTC()

	var errText sql.NullString
	if e.Error != nil {
		errText = sql.NullString{String: *e.Error, Valid: true}
	}

	query := `
INSERT INTO discoveries (id, checked_at, helper, url, reachable, changed, latency_ms, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.CheckedAt.UnixNano(),
		e.Helper,
		e.URL,
		boolToInt(e.Reachable),
		boolToInt(e.Changed),
		e.LatencyMs,
		errText,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to insert discovery: %w", err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `
SELECT id, checked_at, helper, url, reachable, changed, latency_ms, error
FROM discoveries ORDER BY checked_at DESC, rowid DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list discoveries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e         Entry
			checkedAt int64
			reachable int
			changed   int
			errText   sql.NullString
		)
		if err := rows.Scan(&e.ID, &checkedAt, &e.Helper, &e.URL, &reachable, &changed, &e.LatencyMs, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan discovery row: %w", err)
		}
		e.CheckedAt = time.Unix(0, checkedAt).UTC()
		e.Reachable = reachable != 0
		e.Changed = changed != 0
		if errText.Valid {
			msg := errText.String
			e.Error = &msg
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LastChange returns the most recent entry that changed the RM URL.
// It returns [ErrNotFound] when the URL never changed.
func (s *Store) LastChange(ctx context.Context) (Entry, error) {
	query := `
SELECT id, checked_at, helper, url, latency_ms
FROM discoveries WHERE changed = 1 ORDER BY checked_at DESC, rowid DESC LIMIT 1`

	var (
		e         Entry
		checkedAt int64
	)
	err := s.db.QueryRowContext(ctx, query).Scan(&e.ID, &checkedAt, &e.Helper, &e.URL, &e.LatencyMs)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to get last change: %w", err)
	}
	e.CheckedAt = time.Unix(0, checkedAt).UTC()
	e.Reachable = true
	e.Changed = true
	return e, nil
}

// Prune deletes all but the newest keep entries and returns how many rows
// were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	query := `
DELETE FROM discoveries WHERE rowid NOT IN (
	SELECT rowid FROM discoveries ORDER BY checked_at DESC, rowid DESC LIMIT ?
)`
	res, err := s.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune discoveries: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ErrNotFound is returned when a requested entry does not exist.
var ErrNotFound = errors.New("not found")

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
