// Package metrics is the get-or-create facade the batch observer records through.
//
// # Design
//
// The observer does not know its metric families up front in the way a fixed
// recorder would: every (name, label set) pair it sees becomes a series on
// first use. The facade keeps one Prometheus vector per metric name and one
// cached handle per series, keyed by a canonical string built from the name and
// the sorted label pairs:
//
//	batch.step.items.read{job.name="ingest",step.name="load"}
//
// so repeated lookups never touch the backend again and a series is registered
// exactly once, whichever goroutine asks first.
//
// # Naming
//
// Callers use dotted names and label keys. They are mapped to Prometheus
// conventions when the family is created:
//
//	batch.step.items.read  (counter) -> batch_step_items_read_total
//	batch.step.duration    (timer)   -> batch_step_duration_seconds
//	job.name               (label)   -> job_name
//
// # Optional labels
//
// A family's label keys are fixed by Define, or by the first request when the
// family was not declared. Later requests may leave declared keys out; they
// are exported with the empty value, which Prometheus treats as an absent
// label. This is how a chunk timer with and without status=ERROR shares one
// family.
//
// # Push view
//
// Gatherer exposes the backend for push export when it can be gathered. A
// facade built over a bare prometheus.Registerer (for example one produced by
// prometheus.WrapRegistererWith) reports false and push export is skipped.
package metrics
