package monitor

import "git.home.luguber.info/inful/batchmon/internal/metrics"

// Metric names.
const (
	MetricJobDuration     = "batch.job.duration"
	MetricJobExecutions   = "batch.job.executions"
	MetricJobItemsWritten = "batch.job.items.written"

	MetricStepDuration      = "batch.step.duration"
	MetricStepItemsRead     = "batch.step.items.read"
	MetricStepItemsWritten  = "batch.step.items.written"
	MetricStepItemsSkipped  = "batch.step.items.skipped"
	MetricStepItemsFiltered = "batch.step.items.filtered"
	MetricStepRetries       = "batch.step.retries"
	MetricStepFailures      = "batch.step.failures"
	MetricStepThroughput    = "batch.step.throughput"

	MetricChunkDuration = "batch.chunk.duration"
	MetricChunkErrors   = "batch.chunk.errors"
)

// Label keys.
const (
	LabelJobName  = "job.name"
	LabelStepName = "step.name"
	LabelStatus   = "status"
)

// StatusError is the status label of a chunk that aborted.
const StatusError = "ERROR"

var (
	jobLabels        = []string{LabelJobName}
	jobStatusLabels  = []string{LabelJobName, LabelStatus}
	stepLabels       = []string{LabelJobName, LabelStepName}
	stepStatusLabels = []string{LabelJobName, LabelStepName, LabelStatus}
)

// descriptors declares every family the observer emits so help texts and the
// full label schema are fixed before the first event.
var descriptors = []metrics.Desc{
	{Name: MetricJobDuration, Kind: metrics.KindTimer, Histogram: true, LabelKeys: jobStatusLabels,
		Help: "Duration of batch job executions."},
	{Name: MetricJobExecutions, Kind: metrics.KindCounter, LabelKeys: jobStatusLabels,
		Help: "Number of finished batch job executions."},
	{Name: MetricJobItemsWritten, Kind: metrics.KindCounter, LabelKeys: jobLabels,
		Help: "Items written across all steps of a job execution."},

	{Name: MetricStepDuration, Kind: metrics.KindTimer, Histogram: true, LabelKeys: stepStatusLabels,
		Help: "Duration of step executions by exit code."},
	{Name: MetricStepItemsRead, Kind: metrics.KindCounter, LabelKeys: stepLabels,
		Help: "Items read by a step."},
	{Name: MetricStepItemsWritten, Kind: metrics.KindCounter, LabelKeys: stepLabels,
		Help: "Items written by a step."},
	{Name: MetricStepItemsSkipped, Kind: metrics.KindCounter, LabelKeys: stepLabels,
		Help: "Items skipped during read, process or write."},
	{Name: MetricStepItemsFiltered, Kind: metrics.KindCounter, LabelKeys: stepLabels,
		Help: "Items filtered out by the processor."},
	{Name: MetricStepRetries, Kind: metrics.KindCounter, LabelKeys: stepLabels,
		Help: "Chunk rollbacks of a step."},
	{Name: MetricStepFailures, Kind: metrics.KindCounter, LabelKeys: stepLabels,
		Help: "Failures recorded against a step."},
	{Name: MetricStepThroughput, Kind: metrics.KindSummary, LabelKeys: stepLabels,
		Help: "Items written per second over a whole step execution."},

	{Name: MetricChunkDuration, Kind: metrics.KindTimer, LabelKeys: stepStatusLabels,
		Help: "Duration of chunks; status is ERROR for aborted chunks."},
	{Name: MetricChunkErrors, Kind: metrics.KindCounter, LabelKeys: stepLabels,
		Help: "Chunks that aborted with an error."},
}

// DefineMetrics declares the observer's metric families on reg.
func DefineMetrics(reg *metrics.Registry) error {
	for _, d := range descriptors {
		if err := reg.Define(d); err != nil {
			return err
		}
	}
	return nil
}
