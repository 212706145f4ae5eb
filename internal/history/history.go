// Package history keeps a SQLite record of finished resolutions.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Outcomes stored in the outcome column.
const (
	Succeeded = "succeeded"
	Exhausted = "exhausted"
	Failed    = "failed"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS resolutions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	token      TEXT NOT NULL,
	goal       TEXT NOT NULL,
	source     TEXT NOT NULL,
	strategy   TEXT NOT NULL DEFAULT '',
	outcome    TEXT NOT NULL,
	result     TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_resolutions_created ON resolutions(created_at);
`

// Entry is one resolution.
type Entry struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	Goal      string    `json:"goal"`
	Source    string    `json:"source"`
	Strategy  string    `json:"strategy"` // Winning strategy, or the last one tried
	Outcome   string    `json:"outcome"`
	Result    string    `json:"result"` // Selected profile, asset origin or failure reason
	CreatedAt time.Time `json:"created_at"`
}

// Store is the history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	// Batch resolutions record concurrently; one connection serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening history: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating history schema: %w", err)
	}

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&n); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if n == 0 {
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersion); err != nil {
			return fmt.Errorf("setting schema version: %w", err)
		}
		return nil
	}

	var v int
	if err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if v != schemaVersion {
		return fmt.Errorf("unknown history schema version %d", v)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends e.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resolutions(token, goal, source, strategy, outcome, result, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		e.Token, e.Goal, e.Source, e.Strategy, e.Outcome, e.Result,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording history: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, token, goal, source, strategy, outcome, result, created_at
		 FROM resolutions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.Token, &e.Goal, &e.Source, &e.Strategy, &e.Outcome, &e.Result, &created); err != nil {
			return nil, fmt.Errorf("reading history: %w", err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			continue // Skip malformed rows
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return entries, nil
}

// Clear removes all entries.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM resolutions"); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}
