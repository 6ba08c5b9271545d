package engine

import (
	"context"
	"errors"
	"fmt"

	"git.home.luguber.info/inful/batchmon/internal/batch"
	"git.home.luguber.info/inful/batchmon/internal/observability"
)

// FuncStep runs a plain function. It has no listener extension points, so
// discovery reports it as an uninstrumentable component.
type FuncStep struct {
	name string
	fn   func(ctx context.Context) error
}

// NewFuncStep wraps fn as a step.
func NewFuncStep(name string, fn func(ctx context.Context) error) *FuncStep {
	return &FuncStep{name: name, fn: fn}
}

// Name returns the step name.
func (f *FuncStep) Name() string { return f.name }

// Components describes the step for discovery.
func (f *FuncStep) Components() []batch.Component {
	return []batch.Component{batch.Other(f.name)}
}

// Execute runs the function as a step execution of job.
func (f *FuncStep) Execute(ctx context.Context, job *batch.JobExecution) error {
	se := job.AddStepExecution(f.name)
	se.StartTime = clockFrom(ctx).Now()
	se.Status = batch.StatusStarted

	err := f.fn(observability.WithStep(ctx, f.name))
	se.EndTime = clockFrom(ctx).Now()
	switch {
	case err == nil:
		se.Status, se.ExitStatus = batch.StatusCompleted, batch.ExitCompleted
		return nil
	case errors.Is(err, context.Canceled):
		se.Status, se.ExitStatus = batch.StatusStopped, batch.ExitStopped
	default:
		se.Status, se.ExitStatus = batch.StatusFailed, batch.ExitFailed
		se.AddFailure(err)
	}
	return fmt.Errorf("step %s: %w", f.name, err)
}
