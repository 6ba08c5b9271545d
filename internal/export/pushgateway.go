// Package export delivers collected batch metrics to systems outside the
// process: a Prometheus Pushgateway, a NATS subject and the periodic flusher
// for jobs that are still running.
//
// Exporters hang off the job lifecycle as batch.JobListener implementations
// and never let a failure reach the job they observe.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"git.home.luguber.info/inful/batchmon/internal/batch"
	merrors "git.home.luguber.info/inful/batchmon/internal/errors"
	"git.home.luguber.info/inful/batchmon/internal/logfields"
	"git.home.luguber.info/inful/batchmon/internal/observability"
)

// Grouping key label names.
const (
	GroupInstance       = "instance"
	GroupJobExecutionID = "job_execution_id"
	GroupStatus         = "status"
)

const defaultPushTimeout = 10 * time.Second

// GathererSource is the optional push-compatible view of a metric registry.
// *metrics.Registry implements it.
type GathererSource interface {
	Gatherer() (prom.Gatherer, bool)
}

// PushOptions configures a PushExporter.
type PushOptions struct {
	// URL of the Pushgateway, without the /metrics/job/... suffix.
	URL string
	// Job is the Pushgateway job name the snapshot is grouped under.
	Job string
	// Instance is the value of the instance grouping label.
	Instance string
	Timeout  time.Duration
	// Client overrides the HTTP client, mostly for tests.
	Client push.HTTPDoer
}

// PushExporter pushes the full registry snapshot once per finished job.
type PushExporter struct {
	source GathererSource
	opts   PushOptions
}

// NewPushExporter creates an exporter reading from source.
func NewPushExporter(source GathererSource, opts PushOptions) *PushExporter {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultPushTimeout
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	return &PushExporter{source: source, opts: opts}
}

// Push replaces the group {instance, job_execution_id, status} of the
// configured job with the current snapshot. It makes a single attempt.
func (e *PushExporter) Push(ctx context.Context, job *batch.JobExecution) error {
	return e.pushGroup(ctx, job.ID, job.Status.String())
}

func (e *PushExporter) pushGroup(ctx context.Context, jobExecutionID int64, status string) error {
	g, ok := e.source.Gatherer()
	if !ok {
		return merrors.NotPushCompatible(fmt.Sprintf("%T", e.source))
	}
	if err := e.pusher(jobExecutionID, status, g).PushContext(ctx); err != nil {
		return merrors.ExportFailed(e.opts.URL, err)
	}
	return nil
}

// deleteGroup removes a previously pushed group.
func (e *PushExporter) deleteGroup(jobExecutionID int64, status string) error {
	if err := e.pusher(jobExecutionID, status, nil).Delete(); err != nil {
		return merrors.ExportFailed(e.opts.URL, err)
	}
	return nil
}

func (e *PushExporter) pusher(jobExecutionID int64, status string, g prom.Gatherer) *push.Pusher {
	p := push.New(e.opts.URL, e.opts.Job).
		Client(e.opts.Client).
		Grouping(GroupInstance, e.opts.Instance).
		Grouping(GroupJobExecutionID, strconv.FormatInt(jobExecutionID, 10)).
		Grouping(GroupStatus, status)
	if g != nil {
		p = p.Gatherer(renameGroupingLabels(g, GroupInstance, GroupJobExecutionID, GroupStatus))
	}
	return p
}

// BeforeJob is a no-op; the snapshot is only pushed once the job is done.
func (e *PushExporter) BeforeJob(context.Context, *batch.JobExecution) {}

// AfterJob pushes the snapshot for a finished job. Nothing is returned to the
// caller: an incompatible registry is logged as a warning, transport errors as
// errors, and panics inside the push client are recovered.
func (e *PushExporter) AfterJob(ctx context.Context, job *batch.JobExecution) {
	defer func() {
		if r := recover(); r != nil {
			observability.ErrorContext(ctx, "Metrics push panicked",
				logfields.URL(e.opts.URL),
				slog.Any("panic", r))
		}
	}()

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.Timeout)
	defer cancel()

	start := time.Now()
	err := e.Push(pushCtx, job)
	switch {
	case err == nil:
		observability.DebugContext(ctx, "Pushed metrics snapshot",
			logfields.URL(e.opts.URL),
			logfields.Status(job.Status.String()),
			logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	case merrors.IsCategory(err, merrors.CategoryExport) && merrors.GetSeverity(err) == merrors.SeverityWarning:
		observability.WarnContext(ctx, "Skipping metrics push", logfields.Error(err))
	default:
		observability.ErrorContext(ctx, "Failed to push metrics",
			logfields.URL(e.opts.URL),
			logfields.Error(err))
	}
}
