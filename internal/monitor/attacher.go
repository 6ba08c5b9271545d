package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/batchmon/internal/batch"
	merrors "git.home.luguber.info/inful/batchmon/internal/errors"
	"git.home.luguber.info/inful/batchmon/internal/logfields"
	"git.home.luguber.info/inful/batchmon/internal/observability"
)

// AttachReport summarises a discovery pass.
type AttachReport struct {
	Attached int
	Skipped  int
	Failed   int
	// Failures holds one *errors.MonitorError per failed component.
	Failures []error
}

// Attacher registers the observer on pipeline components at assembly time.
// A component that rejects registration stays unmonitored; discovery goes on.
type Attacher struct {
	observer     *Observer
	jobListeners []batch.JobListener
	disabled     bool
}

// NewAttacher attaches observer to steps and jobs. jobListeners are registered
// on job components after the observer, so they see the job's metrics
// already recorded.
func NewAttacher(observer *Observer, jobListeners ...batch.JobListener) *Attacher {
	return &Attacher{observer: observer, jobListeners: jobListeners}
}

// disabledAttacher attaches nothing.
func disabledAttacher() *Attacher {
	return &Attacher{disabled: true}
}

// Enabled reports whether the attacher registers anything at all.
func (a *Attacher) Enabled() bool { return !a.disabled }

// AttachAll attaches to every component in order.
func (a *Attacher) AttachAll(ctx context.Context, components []batch.Component) AttachReport {
	var report AttachReport
	for _, c := range components {
		attached, err := a.Attach(ctx, c)
		switch {
		case err != nil:
			report.Failed++
			report.Failures = append(report.Failures, err)
		case attached:
			report.Attached++
		default:
			report.Skipped++
		}
	}
	observability.DebugContext(ctx, "Component discovery finished",
		slog.Int("attached", report.Attached),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed))
	return report
}

// Attach registers the observer on c according to its kind. It reports
// whether anything was attached. Errors (and panics) raised by the
// component's registrars are logged as warnings and returned as
// errors.AttachFailed; they are never fatal.
func (a *Attacher) Attach(ctx context.Context, c batch.Component) (attached bool, err error) {
	if a.disabled {
		return false, nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during listener registration: %v", r)
		}
		if err != nil {
			err = merrors.AttachFailed(c.Name, err)
			attached = false
			observability.WarnContext(ctx, "Failed to attach monitoring listener",
				logfields.Component(c.Name),
				logfields.ComponentKind(c.Kind.String()),
				logfields.Error(err))
		}
	}()

	switch c.Kind {
	case batch.KindSimpleStep:
		if c.Chunks == nil {
			return false, fmt.Errorf("simple step %q has no chunk listener extension point", c.Name)
		}
		if err := a.attachStep(c); err != nil {
			return false, err
		}
		if err := c.Chunks.RegisterChunkListener(a.observer); err != nil {
			return false, fmt.Errorf("chunk listener rejected, step listener stays registered: %w", err)
		}
	case batch.KindPartitionStep:
		// Child step executions carry the chunks; the manager step only has
		// execution boundaries.
		if err := a.attachStep(c); err != nil {
			return false, err
		}
	case batch.KindJob:
		if c.Jobs == nil {
			return false, fmt.Errorf("job %q has no job listener extension point", c.Name)
		}
		if err := c.Jobs.RegisterJobListener(a.observer); err != nil {
			return false, err
		}
		for _, l := range a.jobListeners {
			if err := c.Jobs.RegisterJobListener(l); err != nil {
				return false, err
			}
		}
	default:
		observability.DebugContext(ctx, "Component does not support monitoring, skipping",
			logfields.Component(c.Name),
			logfields.ComponentKind(c.Kind.String()))
		return false, nil
	}

	observability.DebugContext(ctx, "Attached monitoring listener",
		logfields.Component(c.Name),
		logfields.ComponentKind(c.Kind.String()))
	return true, nil
}

func (a *Attacher) attachStep(c batch.Component) error {
	if c.Steps == nil {
		return fmt.Errorf("step %q has no step listener extension point", c.Name)
	}
	return c.Steps.RegisterStepListener(a.observer)
}
