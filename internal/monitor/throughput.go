package monitor

import (
	"context"
	"time"

	"git.home.luguber.info/inful/batchmon/internal/batch"
	"git.home.luguber.info/inful/batchmon/internal/logfields"
	"git.home.luguber.info/inful/batchmon/internal/metrics"
	"git.home.luguber.info/inful/batchmon/internal/observability"
)

// minThroughputDuration is the shortest step duration a throughput sample is
// recorded for. Shorter measurements are noise.
const minThroughputDuration = time.Millisecond

// Throughput returns items per second. ok is false when elapsed is too short
// to give a meaningful rate.
func Throughput(written int64, elapsed time.Duration) (perSecond float64, ok bool) {
	if elapsed < minThroughputDuration {
		return 0, false
	}
	return float64(written) / elapsed.Seconds(), true
}

// recordThroughput records the rate over the whole step: total writes divided
// by total elapsed time.
func (o *Observer) recordThroughput(ctx context.Context, step *batch.StepExecution, labels metrics.Labels, elapsed time.Duration) {
	rate, ok := Throughput(step.WriteCount, elapsed)
	if !ok {
		observability.WarnContext(ctx, "Step duration too short to compute throughput",
			logfields.DurationMS(float64(elapsed.Microseconds())/1000),
			logfields.Items(step.WriteCount))
		return
	}

	s, err := o.registry.Summary(MetricStepThroughput, labels)
	if err != nil {
		o.metricFailed(ctx, MetricStepThroughput, err)
		return
	}
	s.Record(rate)
}
