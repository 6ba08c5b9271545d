package export

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/batchmon/internal/batch"
	"git.home.luguber.info/inful/batchmon/internal/logfields"
	"git.home.luguber.info/inful/batchmon/internal/observability"
)

// Flusher periodically pushes the registry for every job that is still
// running, grouped under status STARTED. The group is deleted once the job
// finishes and its final snapshot has been pushed by the PushExporter.
type Flusher struct {
	exporter  *PushExporter
	interval  time.Duration
	scheduler gocron.Scheduler

	mu       sync.Mutex
	inflight map[int64]*inflightJob
}

// inflightJob is guarded by Flusher.mu.
type inflightJob struct {
	// pushed is set once a STARTED group exists on the gateway.
	pushed bool
	// pushing is set while a flush PUT for the job is on the wire. A job
	// finishing meanwhile leaves the group cleanup to that flush.
	pushing bool
}

// FlusherOption configures a Flusher.
type FlusherOption func(*flusherConfig)

type flusherConfig struct {
	clock clockwork.Clock
}

// WithFlushClock drives the scheduler from c.
func WithFlushClock(c clockwork.Clock) FlusherOption {
	return func(fc *flusherConfig) { fc.clock = c }
}

// NewFlusher creates a flusher pushing through exporter every interval.
func NewFlusher(exporter *PushExporter, interval time.Duration, opts ...FlusherOption) (*Flusher, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("flush interval must be positive, got %s", interval)
	}
	fc := flusherConfig{clock: clockwork.NewRealClock()}
	for _, o := range opts {
		o(&fc)
	}

	s, err := gocron.NewScheduler(gocron.WithClock(fc.clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	f := &Flusher{
		exporter:  exporter,
		interval:  interval,
		scheduler: s,
		inflight:  make(map[int64]*inflightJob),
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(f.scheduledFlush),
		gocron.WithName("inflight-metrics-flush"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create flush job: %w", err)
	}
	return f, nil
}

// Start begins the periodic flush.
func (f *Flusher) Start() {
	slog.Info("Starting in-flight metrics flusher", slog.Duration("interval", f.interval))
	f.scheduler.Start()
}

// Stop shuts the scheduler down and waits for a running flush.
func (f *Flusher) Stop() error {
	slog.Info("Stopping in-flight metrics flusher")
	return f.scheduler.Shutdown()
}

func (f *Flusher) scheduledFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), f.exporter.opts.Timeout)
	defer cancel()
	if err := f.FlushNow(ctx); err != nil {
		slog.Warn("In-flight metrics flush failed", logfields.Error(err))
	}
}

// FlushNow pushes the current snapshot once for every in-flight job. Jobs
// with a push already on the wire are left to that push.
func (f *Flusher) FlushNow(ctx context.Context) error {
	type target struct {
		id  int64
		job *inflightJob
	}

	f.mu.Lock()
	targets := make([]target, 0, len(f.inflight))
	for id, job := range f.inflight {
		if job.pushing {
			continue
		}
		job.pushing = true
		targets = append(targets, target{id: id, job: job})
	}
	f.mu.Unlock()

	var errs []error
	for _, t := range targets {
		err := f.exporter.pushGroup(ctx, t.id, batch.StatusStarted.String())

		f.mu.Lock()
		t.job.pushing = false
		if err == nil {
			t.job.pushed = true
		}
		_, tracked := f.inflight[t.id]
		stale := !tracked && t.job.pushed
		f.mu.Unlock()

		if err != nil {
			errs = append(errs, err)
		}
		if stale {
			f.deleteGroup(ctx, t.id)
		}
	}
	return stderrors.Join(errs...)
}

// InFlight is the number of jobs currently tracked.
func (f *Flusher) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inflight)
}

// BeforeJob starts tracking job.
func (f *Flusher) BeforeJob(_ context.Context, job *batch.JobExecution) {
	f.mu.Lock()
	f.inflight[job.ID] = &inflightJob{}
	f.mu.Unlock()
}

// AfterJob stops tracking job and removes its in-flight group if one was
// pushed. When a flush of the job is still running, that flush removes the
// group once its push returns.
func (f *Flusher) AfterJob(ctx context.Context, job *batch.JobExecution) {
	f.mu.Lock()
	state, ok := f.inflight[job.ID]
	delete(f.inflight, job.ID)
	var pushed, pushing bool
	if ok {
		pushed, pushing = state.pushed, state.pushing
	}
	f.mu.Unlock()

	if pushing || !pushed {
		return
	}
	f.deleteGroup(ctx, job.ID)
}

func (f *Flusher) deleteGroup(ctx context.Context, id int64) {
	if err := f.exporter.deleteGroup(id, batch.StatusStarted.String()); err != nil {
		observability.WarnContext(ctx, "Failed to delete in-flight metrics group",
			logfields.JobExecutionID(id),
			logfields.Error(err))
	}
}
