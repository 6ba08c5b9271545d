// Package journal keeps a local history of finished job executions in SQLite.
package journal

import (
	"context"
	"time"

	"git.home.luguber.info/inful/batchmon/internal/batch"
	"git.home.luguber.info/inful/batchmon/internal/logfields"
	"git.home.luguber.info/inful/batchmon/internal/observability"
)

// Entry is one recorded job execution.
type Entry struct {
	ID         string
	RecordedAt time.Time
	Summary    batch.Summary
}

// Store persists job summaries.
type Store interface {
	Record(ctx context.Context, s batch.Summary) (Entry, error)
	// Recent returns the newest entries first. An empty jobName matches every job.
	Recent(ctx context.Context, jobName string, limit int) ([]Entry, error)
	Close() error
}

// Listener records every finished job in a Store.
type Listener struct {
	store Store
}

// NewListener returns a job listener writing to store.
func NewListener(store Store) *Listener {
	return &Listener{store: store}
}

// BeforeJob does nothing.
func (l *Listener) BeforeJob(context.Context, *batch.JobExecution) {}

// AfterJob records the job summary. Storage errors are logged, never returned.
func (l *Listener) AfterJob(ctx context.Context, job *batch.JobExecution) {
	entry, err := l.store.Record(context.WithoutCancel(ctx), batch.Summarize(job))
	if err != nil {
		observability.ErrorContext(ctx, "Failed to record job in journal", logfields.Error(err))
		return
	}
	observability.DebugContext(ctx, "Recorded job in journal", logfields.Status(entry.Summary.Status))
}
