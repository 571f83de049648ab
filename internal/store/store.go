// Package store provides a SQLite-backed history of served questions.
// Every answered query is recorded with its retrieval evidence summary so
// operators can review what the engine was asked and how confidently it
// answered. History survives restarts and is exposed through the
// `biorag history` command.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Entry is one served question and its outcome.
type Entry struct {
	// Query is the user's question as received.
	Query string `json:"query"`
	// Answer is the synthesized response text.
	Answer string `json:"answer"`
	// Sources is the number of chunks that backed the answer.
	Sources int `json:"sources"`
	// TopScore is the best similarity score among the results, 0 when the
	// result set was empty.
	TopScore float32 `json:"top_score"`
	// Synthesizer is the label of the synthesizer that answered.
	Synthesizer string `json:"synthesizer"`
	// CreatedAt is when the entry was persisted.
	CreatedAt time.Time `json:"created_at"`
}

// HistoryStore persists and retrieves the question log.
// Implementations must be safe for concurrent use.
type HistoryStore interface {
	// Append persists one served question.
	Append(ctx context.Context, e Entry) error
	// Recent returns the most recent n entries, newest first.
	// If fewer than n exist, all are returned.
	Recent(ctx context.Context, n int) ([]Entry, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a HistoryStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the history database.
// It resolves to ~/.biorag/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".biorag")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS questions (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    query        TEXT    NOT NULL,
    answer       TEXT    NOT NULL,
    sources      INTEGER NOT NULL,
    top_score    REAL    NOT NULL,
    synthesizer  TEXT    NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_questions_created
    ON questions (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists one served question.
func (s *SQLiteStore) Append(ctx context.Context, e Entry) error {
	const q = `INSERT INTO questions (query, answer, sources, top_score, synthesizer, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		e.Query, e.Answer, e.Sources, e.TopScore, e.Synthesizer, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n entries, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Entry, error) {
	const q = `
SELECT query, answer, sources, top_score, synthesizer, created_at
FROM   questions
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.Query, &e.Answer, &e.Sources, &e.TopScore, &e.Synthesizer, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		e.CreatedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return entries, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
