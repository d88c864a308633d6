// Package history persists finished transcription jobs to a local sqlite
// database so past transcripts survive restarts.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scribepipe/scribepipe/internal/job"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_info (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
    id           TEXT PRIMARY KEY,
    profile_id   TEXT NOT NULL,
    source       TEXT NOT NULL,
    state        TEXT NOT NULL,
    transcript   TEXT NOT NULL DEFAULT '',
    error        TEXT NOT NULL DEFAULT '',
    caret_offset INTEGER NOT NULL DEFAULT 0,
    created_at   TIMESTAMP NOT NULL,
    finished_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at DESC);
`

// Entry is one recorded job.
type Entry struct {
	ID         string
	ProfileID  string
	Source     string
	State      job.State
	Transcript string
	Error      string
	CreatedAt  time.Time
	FinishedAt time.Time
}

// Store is a sqlite-backed job history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// sqlite serializes writers; a single connection avoids lock churn.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply history schema: %w", err)
	}

	var version int
	err := db.QueryRow(`SELECT version FROM schema_info LIMIT 1`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.Exec(`INSERT INTO schema_info (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version != schemaVersion:
		return fmt.Errorf("history schema version %d, want %d", version, schemaVersion)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record persists a terminal job. Recording the same job twice updates
// the existing row.
func (s *Store) Record(ctx context.Context, j *job.Job) error {
	state := j.State()
	if !state.Terminal() {
		return fmt.Errorf("record history: job %s is %s, not terminal", j.ID(), state)
	}

	transcript, _ := j.Result()
	var errText string
	if err := j.Err(); err != nil {
		errText = err.Error()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, profile_id, source, state, transcript, error, caret_offset, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			transcript = excluded.transcript,
			error = excluded.error,
			finished_at = excluded.finished_at`,
		j.ID(), j.ProfileID(), j.Source(), string(state), transcript, errText,
		j.CaretOffset(), j.CreatedAt().UTC(), j.FinishedAt().UTC())
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile_id, source, state, transcript, error, created_at, finished_at
		FROM jobs
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var state string
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.Source, &state, &e.Transcript,
			&e.Error, &e.CreatedAt, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.State = job.State(state)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return out, nil
}
