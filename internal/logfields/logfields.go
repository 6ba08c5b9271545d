package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyJobName        = "job_name"
	KeyJobExecutionID = "job_execution_id"
	KeyStepName       = "step_name"
	KeyChunkSeq       = "chunk_seq"
	KeyStatus         = "status"
	KeyExitCode       = "exit_code"
	KeyComponent      = "component"
	KeyComponentKind  = "component_kind"
	KeyMetric         = "metric"
	KeyDurationMS     = "duration_ms"
	KeyItems          = "items"
	KeyThroughput     = "items_per_sec"
	KeyURL            = "url"
	KeySubject        = "subject"
	KeyPath           = "path"
	KeyError          = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func JobName(n string) slog.Attr          { return slog.String(KeyJobName, n) }
func JobExecutionID(id int64) slog.Attr   { return slog.Int64(KeyJobExecutionID, id) }
func StepName(n string) slog.Attr         { return slog.String(KeyStepName, n) }
func ChunkSeq(seq int64) slog.Attr        { return slog.Int64(KeyChunkSeq, seq) }
func Status(s string) slog.Attr           { return slog.String(KeyStatus, s) }
func ExitCode(c string) slog.Attr         { return slog.String(KeyExitCode, c) }
func Component(n string) slog.Attr        { return slog.String(KeyComponent, n) }
func ComponentKind(k string) slog.Attr    { return slog.String(KeyComponentKind, k) }
func Metric(n string) slog.Attr           { return slog.String(KeyMetric, n) }
func DurationMS(ms float64) slog.Attr     { return slog.Float64(KeyDurationMS, ms) }
func Items(n int64) slog.Attr             { return slog.Int64(KeyItems, n) }
func Throughput(perSec float64) slog.Attr { return slog.Float64(KeyThroughput, perSec) }
func URL(u string) slog.Attr              { return slog.String(KeyURL, u) }
func Subject(s string) slog.Attr          { return slog.String(KeySubject, s) }
func Path(p string) slog.Attr             { return slog.String(KeyPath, p) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
