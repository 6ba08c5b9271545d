package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/batchmon/internal/batch"
	"git.home.luguber.info/inful/batchmon/internal/logfields"
	"git.home.luguber.info/inful/batchmon/internal/observability"
)

type clockKey struct{}

var realClock = clockwork.NewRealClock()

// clockFrom returns the launcher clock carried by ctx.
func clockFrom(ctx context.Context) clockwork.Clock {
	if c, ok := ctx.Value(clockKey{}).(clockwork.Clock); ok {
		return c
	}
	return realClock
}

// Step is one stage of a job.
type Step interface {
	Name() string
	Execute(ctx context.Context, job *batch.JobExecution) error
	// Components describes the step and any inner steps for discovery.
	Components() []batch.Component
}

// Job is an ordered list of steps. A step that does not complete ends the job.
type Job struct {
	name  string
	steps []Step

	mu        sync.RWMutex
	listeners []batch.JobListener
}

// NewJob creates a job.
func NewJob(name string, steps ...Step) *Job {
	return &Job{name: name, steps: steps}
}

// Name returns the job name.
func (j *Job) Name() string { return j.name }

// RegisterJobListener adds a job listener. Listeners are called in
// registration order, both before and after the job.
func (j *Job) RegisterJobListener(l batch.JobListener) error {
	if l == nil {
		return errors.New("nil job listener")
	}
	j.mu.Lock()
	j.listeners = append(j.listeners, l)
	j.mu.Unlock()
	return nil
}

// Components lists the job and every step for discovery.
func (j *Job) Components() []batch.Component {
	out := []batch.Component{batch.Job(j.name, j)}
	for _, s := range j.steps {
		out = append(out, s.Components()...)
	}
	return out
}

func (j *Job) run(ctx context.Context, clock clockwork.Clock, id int64) *batch.JobExecution {
	ctx = context.WithValue(ctx, clockKey{}, clock)
	exec := batch.NewJobExecution(id, j.name)
	ctx = observability.WithJob(ctx, j.name, id)

	j.mu.RLock()
	listeners := append([]batch.JobListener(nil), j.listeners...)
	j.mu.RUnlock()

	exec.StartTime = clock.Now()
	exec.Status = batch.StatusStarted
	for _, l := range listeners {
		l.BeforeJob(ctx, exec)
	}
	observability.InfoContext(ctx, "Job started")

	exec.Status = batch.StatusCompleted
	for _, s := range j.steps {
		if err := ctx.Err(); err != nil {
			exec.Status = batch.StatusStopped
			break
		}
		if err := s.Execute(ctx, exec); err != nil {
			exec.Status = batch.StatusFailed
			if errors.Is(err, context.Canceled) {
				exec.Status = batch.StatusStopped
			}
			break
		}
	}
	exec.EndTime = clock.Now()

	for _, l := range listeners {
		l.AfterJob(ctx, exec)
	}
	observability.InfoContext(ctx, "Job finished",
		logfields.Status(exec.Status.String()),
		logfields.DurationMS(float64(exec.Duration().Microseconds())/1000))
	return exec
}

// Launcher runs jobs and hands out execution ids.
type Launcher struct {
	clock  clockwork.Clock
	lastID atomic.Int64
}

// LauncherOption configures a Launcher.
type LauncherOption func(*Launcher)

// WithClock sets the clock for execution timestamps.
func WithClock(c clockwork.Clock) LauncherOption {
	return func(l *Launcher) { l.clock = c }
}

// WithFirstExecutionID makes the next execution id start after id.
func WithFirstExecutionID(id int64) LauncherOption {
	return func(l *Launcher) { l.lastID.Store(id - 1) }
}

// NewLauncher creates a launcher.
func NewLauncher(opts ...LauncherOption) *Launcher {
	l := &Launcher{clock: realClock}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Run executes job synchronously under a new execution id. The returned
// error only reports that the job did not complete; the execution carries
// the details.
func (l *Launcher) Run(ctx context.Context, job *Job) (*batch.JobExecution, error) {
	exec := job.run(ctx, l.clock, l.lastID.Add(1))
	if exec.Status != batch.StatusCompleted {
		return exec, fmt.Errorf("job %s execution %d finished with status %s", job.name, exec.ID, exec.Status)
	}
	return exec, nil
}
