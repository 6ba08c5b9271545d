package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/batchmon/internal/batch"
	"git.home.luguber.info/inful/batchmon/internal/logfields"
	"git.home.luguber.info/inful/batchmon/internal/observability"
)

type partitionKey struct{}

// PartitionFromContext returns the partition index of the execution running
// with ctx.
func PartitionFromContext(ctx context.Context) (int, bool) {
	p, ok := ctx.Value(partitionKey{}).(int)
	return p, ok
}

// workerStep is a step the partition manager can run against a given step execution.
type workerStep interface {
	Step
	execute(ctx context.Context, se *batch.StepExecution) error
}

// PartitionStep runs a worker step GridSize times in parallel, each as its
// own step execution named "<name>:partition<N>". The manager execution only
// has step boundaries; items are counted on the worker executions.
type PartitionStep struct {
	name     string
	gridSize int
	worker   workerStep

	mu            sync.RWMutex
	stepListeners []batch.StepListener
}

// NewPartitionStep builds a partitioned step around worker.
func NewPartitionStep[I, O any](name string, gridSize int, worker *ChunkStep[I, O]) *PartitionStep {
	if gridSize <= 0 {
		gridSize = 1
	}
	return &PartitionStep{name: name, gridSize: gridSize, worker: worker}
}

// Name returns the step name.
func (p *PartitionStep) Name() string { return p.name }

// RegisterStepListener adds a listener on the manager execution.
func (p *PartitionStep) RegisterStepListener(l batch.StepListener) error {
	if l == nil {
		return errors.New("nil step listener")
	}
	p.mu.Lock()
	p.stepListeners = append(p.stepListeners, l)
	p.mu.Unlock()
	return nil
}

// Components describes the manager and its worker step.
func (p *PartitionStep) Components() []batch.Component {
	return append([]batch.Component{batch.PartitionStep(p.name, p)}, p.worker.Components()...)
}

// Execute runs every partition on its own goroutine and waits for all of them.
func (p *PartitionStep) Execute(ctx context.Context, job *batch.JobExecution) error {
	manager := job.AddStepExecution(p.name)
	ctx = observability.WithStep(ctx, p.name)

	p.mu.RLock()
	listeners := append([]batch.StepListener(nil), p.stepListeners...)
	p.mu.RUnlock()

	manager.StartTime = clockFrom(ctx).Now()
	manager.Status = batch.StatusStarted
	for _, l := range listeners {
		l.BeforeStep(ctx, manager)
	}

	// Partitions are independent: one failing does not cancel the others.
	var g errgroup.Group
	errs := make([]error, p.gridSize)
	for i := 0; i < p.gridSize; i++ {
		child := job.AddStepExecution(fmt.Sprintf("%s:partition%d", p.name, i))
		pctx := context.WithValue(ctx, partitionKey{}, i)
		g.Go(func() error {
			errs[i] = p.worker.execute(pctx, child)
			return nil
		})
	}
	_ = g.Wait()
	err := errors.Join(errs...)

	switch {
	case err == nil:
		manager.Status = batch.StatusCompleted
		manager.ExitStatus = batch.ExitCompleted
	case errors.Is(err, context.Canceled):
		manager.Status = batch.StatusStopped
		manager.ExitStatus = batch.ExitStopped
	default:
		manager.Status = batch.StatusFailed
		manager.ExitStatus = batch.ExitFailed
		manager.AddFailure(err)
	}
	manager.EndTime = clockFrom(ctx).Now()

	for i := len(listeners) - 1; i >= 0; i-- {
		manager.ExitStatus = listeners[i].AfterStep(ctx, manager)
	}

	if err != nil {
		observability.WarnContext(ctx, "Partitioned step did not complete",
			logfields.Status(manager.Status.String()),
			logfields.Error(err))
		return fmt.Errorf("step %s: %w", p.name, err)
	}
	return nil
}
