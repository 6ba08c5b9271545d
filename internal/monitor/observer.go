// Package monitor turns batch lifecycle events into metrics.
//
// An Observer listens to job, step and chunk boundaries, times them through a
// timing.Store keyed by execution identity and records durations, item counts
// and throughput in a metrics.Registry. The Attacher hooks the observer into
// pipeline components at assembly time, and Setup wires the whole monitoring
// stack (exporters included) from configuration.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/batchmon/internal/batch"
	"git.home.luguber.info/inful/batchmon/internal/logfields"
	"git.home.luguber.info/inful/batchmon/internal/metrics"
	"git.home.luguber.info/inful/batchmon/internal/observability"
	"git.home.luguber.info/inful/batchmon/internal/timing"
)

// Observer records batch metrics. It implements batch.JobListener,
// batch.StepListener and batch.ChunkListener and is safe for concurrent use by
// parallel steps and chunks.
type Observer struct {
	registry *metrics.Registry
	sessions *timing.Store
}

var (
	_ batch.JobListener   = (*Observer)(nil)
	_ batch.StepListener  = (*Observer)(nil)
	_ batch.ChunkListener = (*Observer)(nil)
)

// NewObserver declares the observer's metric families on registry and returns
// an observer timing executions with sessions.
func NewObserver(registry *metrics.Registry, sessions *timing.Store) (*Observer, error) {
	if err := DefineMetrics(registry); err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = timing.NewStore()
	}
	return &Observer{registry: registry, sessions: sessions}, nil
}

// Sessions exposes the session store, mostly for tests.
func (o *Observer) Sessions() *timing.Store { return o.sessions }

// BeforeJob starts the job timer.
func (o *Observer) BeforeJob(_ context.Context, job *batch.JobExecution) {
	o.sessions.Start(timing.JobKey(job.ID))
}

// AfterJob records the job duration, counts the execution and adds up the
// items written by every step of the job. Sessions of the job that are still
// open afterwards are dropped.
func (o *Observer) AfterJob(ctx context.Context, job *batch.JobExecution) {
	ctx = jobContext(ctx, job)
	status := job.Status.String()
	labels := metrics.Labels{LabelJobName: job.JobName, LabelStatus: status}

	if d, ok := o.sessions.Stop(timing.JobKey(job.ID)); ok {
		o.recordTimer(ctx, MetricJobDuration, labels, true, d)
	}
	o.increment(ctx, MetricJobExecutions, labels, 1)

	var written int64
	for _, step := range job.StepExecutions() {
		written += step.WriteCount
	}
	o.increment(ctx, MetricJobItemsWritten, metrics.Labels{LabelJobName: job.JobName}, float64(written))

	if n := o.sessions.Forget(job.ID); n > 0 {
		observability.DebugContext(ctx, "Dropped unfinished timing sessions",
			logfields.Status(status),
			logfields.Items(int64(n)))
	}
}

// BeforeStep starts the step timer.
func (o *Observer) BeforeStep(_ context.Context, step *batch.StepExecution) {
	o.sessions.Start(timing.StepKey(step.JobExecutionID(), step.StepName))
}

// AfterStep records the step duration and item counters and returns the
// step's exit status unchanged.
func (o *Observer) AfterStep(ctx context.Context, step *batch.StepExecution) batch.ExitStatus {
	ctx = stepContext(ctx, step)
	labels := stepLabelValues(step)

	if d, ok := o.sessions.Stop(timing.StepKey(step.JobExecutionID(), step.StepName)); ok {
		o.recordTimer(ctx, MetricStepDuration, withStatus(labels, step.ExitStatus.Code()), true, d)
		if d > 0 {
			o.recordThroughput(ctx, step, labels, d)
		}
	}

	// Zero increments still create the series.
	o.increment(ctx, MetricStepItemsRead, labels, float64(step.ReadCount))
	o.increment(ctx, MetricStepItemsWritten, labels, float64(step.WriteCount))
	o.increment(ctx, MetricStepItemsSkipped, labels, float64(step.SkipCount()))
	o.increment(ctx, MetricStepRetries, labels, float64(step.RollbackCount))
	o.increment(ctx, MetricStepItemsFiltered, labels, float64(step.FilterCount))

	// The failures series only exists for steps that have failed at least once.
	if n := len(step.Failures); n > 0 {
		o.increment(ctx, MetricStepFailures, labels, float64(n))
	}

	return step.ExitStatus
}

// BeforeChunk starts the chunk timer.
func (o *Observer) BeforeChunk(_ context.Context, chunk *batch.ChunkContext) {
	o.sessions.Start(chunkKey(chunk))
}

// AfterChunk records the chunk duration.
func (o *Observer) AfterChunk(ctx context.Context, chunk *batch.ChunkContext) {
	ctx = stepContext(ctx, chunk.Step)
	if d, ok := o.sessions.Stop(chunkKey(chunk)); ok {
		o.recordTimer(ctx, MetricChunkDuration, stepLabelValues(chunk.Step), false, d)
	}
}

// AfterChunkError records the aborted chunk's duration, if it was timed, with
// status ERROR and always counts the error.
func (o *Observer) AfterChunkError(ctx context.Context, chunk *batch.ChunkContext) {
	ctx = stepContext(ctx, chunk.Step)
	labels := stepLabelValues(chunk.Step)
	if d, ok := o.sessions.Stop(chunkKey(chunk)); ok {
		o.recordTimer(ctx, MetricChunkDuration, withStatus(labels, StatusError), false, d)
	}
	o.increment(ctx, MetricChunkErrors, labels, 1)
}

// jobContext fills in the log context when the engine did not.
func jobContext(ctx context.Context, job *batch.JobExecution) context.Context {
	if observability.GetContext(ctx).JobName == "" {
		ctx = observability.WithJob(ctx, job.JobName, job.ID)
	}
	return ctx
}

func stepContext(ctx context.Context, step *batch.StepExecution) context.Context {
	lc := observability.GetContext(ctx)
	if lc.JobName == "" {
		ctx = observability.WithJob(ctx, step.JobName(), step.JobExecutionID())
	}
	if lc.StepName == "" {
		ctx = observability.WithStep(ctx, step.StepName)
	}
	return ctx
}

func chunkKey(chunk *batch.ChunkContext) timing.Key {
	return timing.ChunkKey(chunk.Step.JobExecutionID(), chunk.Step.StepName, chunk.Sequence)
}

func stepLabelValues(step *batch.StepExecution) metrics.Labels {
	return metrics.Labels{LabelJobName: step.JobName(), LabelStepName: step.StepName}
}

func withStatus(labels metrics.Labels, status string) metrics.Labels {
	out := make(metrics.Labels, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out[LabelStatus] = status
	return out
}

func (o *Observer) increment(ctx context.Context, name string, labels metrics.Labels, n float64) {
	c, err := o.registry.Counter(name, labels)
	if err != nil {
		o.metricFailed(ctx, name, err)
		return
	}
	if n < 0 {
		observability.WarnContext(ctx, "Ignoring negative count",
			logfields.Metric(name),
			slog.Float64("value", n))
		n = 0
	}
	c.Add(n)
}

func (o *Observer) recordTimer(ctx context.Context, name string, labels metrics.Labels, histogram bool, d time.Duration) {
	t, err := o.registry.Timer(name, labels, histogram)
	if err != nil {
		o.metricFailed(ctx, name, err)
		return
	}
	t.Record(d)
}

func (o *Observer) metricFailed(ctx context.Context, name string, err error) {
	observability.WarnContext(ctx, "Failed to record metric",
		logfields.Metric(name),
		logfields.Error(err))
}
