package batch

import "time"

// Summary is a flat, serialisable view of a finished job execution.
type Summary struct {
	JobName        string        `json:"job_name"`
	JobExecutionID int64         `json:"job_execution_id"`
	Status         string        `json:"status"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	DurationMS     int64         `json:"duration_ms"`
	ItemsRead      int64         `json:"items_read"`
	ItemsWritten   int64         `json:"items_written"`
	ItemsSkipped   int64         `json:"items_skipped"`
	ItemsFiltered  int64         `json:"items_filtered"`
	Failures       int           `json:"failures"`
	Steps          []StepSummary `json:"steps"`
}

// StepSummary is the per-step part of a Summary.
type StepSummary struct {
	StepName      string `json:"step_name"`
	ExitCode      string `json:"exit_code"`
	DurationMS    int64  `json:"duration_ms"`
	ItemsRead     int64  `json:"items_read"`
	ItemsWritten  int64  `json:"items_written"`
	ItemsSkipped  int64  `json:"items_skipped"`
	ItemsFiltered int64  `json:"items_filtered"`
	Retries       int64  `json:"retries"`
	Failures      int    `json:"failures"`
}

// Summarize builds a Summary from a job execution and its steps.
func Summarize(job *JobExecution) Summary {
	s := Summary{
		JobName:        job.JobName,
		JobExecutionID: job.ID,
		Status:         job.Status.String(),
		StartTime:      job.StartTime,
		EndTime:        job.EndTime,
		DurationMS:     job.Duration().Milliseconds(),
	}
	for _, se := range job.StepExecutions() {
		var d time.Duration
		if !se.StartTime.IsZero() && !se.EndTime.IsZero() {
			d = se.EndTime.Sub(se.StartTime)
		}
		s.Steps = append(s.Steps, StepSummary{
			StepName:      se.StepName,
			ExitCode:      se.ExitStatus.Code(),
			DurationMS:    d.Milliseconds(),
			ItemsRead:     se.ReadCount,
			ItemsWritten:  se.WriteCount,
			ItemsSkipped:  se.SkipCount(),
			ItemsFiltered: se.FilterCount,
			Retries:       se.RollbackCount,
			Failures:      len(se.Failures),
		})
		s.ItemsRead += se.ReadCount
		s.ItemsWritten += se.WriteCount
		s.ItemsSkipped += se.SkipCount()
		s.ItemsFiltered += se.FilterCount
		s.Failures += len(se.Failures)
	}
	return s
}
