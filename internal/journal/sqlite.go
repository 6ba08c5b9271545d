package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/batchmon/internal/batch"
	merrors "git.home.luguber.info/inful/batchmon/internal/errors"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	clock clockwork.Clock
	mu    sync.RWMutex
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock sets the clock used for RecordedAt.
func WithClock(c clockwork.Clock) Option {
	return func(s *SQLiteStore) { s.clock = c }
}

// NewSQLiteStore opens (and if needed creates) the journal at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, merrors.StorageError("open", fmt.Errorf("open sqlite database: %w", err))
	}
	// A single connection keeps ":memory:" databases alive and serialises writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, clock: clockwork.NewRealClock()}
	for _, o := range opts {
		o(store)
	}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, merrors.StorageError("initialize", fmt.Errorf("initialize schema: %w", err))
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS job_runs (
		id TEXT PRIMARY KEY,
		job_name TEXT NOT NULL,
		job_execution_id INTEGER NOT NULL,
		status TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		items_written INTEGER NOT NULL,
		recorded_at INTEGER NOT NULL,
		summary TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_job_runs_job_name ON job_runs(job_name);
	CREATE INDEX IF NOT EXISTS idx_job_runs_recorded_at ON job_runs(recorded_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores a job summary under a fresh id.
func (s *SQLiteStore) Record(ctx context.Context, summary batch.Summary) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(summary)
	if err != nil {
		return Entry{}, merrors.StorageError("record", fmt.Errorf("marshal summary: %w", err))
	}

	entry := Entry{
		ID:         uuid.NewString(),
		RecordedAt: s.clock.Now().UTC(),
		Summary:    summary,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO job_runs (id, job_name, job_execution_id, status, duration_ms, items_written, recorded_at, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, summary.JobName, summary.JobExecutionID, summary.Status,
		summary.DurationMS, summary.ItemsWritten, entry.RecordedAt.UnixMilli(), string(payload),
	)
	if err != nil {
		return Entry{}, merrors.StorageError("record", fmt.Errorf("insert job run: %w", err))
	}
	return entry, nil
}

// Recent returns up to limit entries, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, jobName string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, recorded_at, summary FROM job_runs
		 WHERE ? = '' OR job_name = ?
		 ORDER BY recorded_at DESC, rowid DESC
		 LIMIT ?`,
		jobName, jobName, limit,
	)
	if err != nil {
		return nil, merrors.StorageError("query", fmt.Errorf("query job runs: %w", err))
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			recordedAt int64
			payload    string
		)
		if err := rows.Scan(&e.ID, &recordedAt, &payload); err != nil {
			return nil, merrors.StorageError("query", fmt.Errorf("scan job run: %w", err))
		}
		e.RecordedAt = time.UnixMilli(recordedAt).UTC()
		if err := json.Unmarshal([]byte(payload), &e.Summary); err != nil {
			return nil, merrors.StorageError("query", fmt.Errorf("unmarshal summary: %w", err))
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, merrors.StorageError("query", fmt.Errorf("iterate rows: %w", err))
	}
	return entries, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
