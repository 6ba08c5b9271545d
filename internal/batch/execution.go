package batch

import (
	"sync"
	"sync/atomic"
	"time"
)

// JobExecution describes one run of a named job.
//
// The engine owns it; listeners only hold a reference for the duration of a
// single event. Step executions may be added from several goroutines when a
// partitioned step fans out.
type JobExecution struct {
	ID        int64
	JobName   string
	Status    BatchStatus
	StartTime time.Time
	EndTime   time.Time

	mu    sync.Mutex
	steps []*StepExecution
}

// NewJobExecution creates a job execution in the STARTING state.
func NewJobExecution(id int64, jobName string) *JobExecution {
	return &JobExecution{ID: id, JobName: jobName, Status: StatusStarting}
}

// AddStepExecution creates and registers a step execution for this job.
func (j *JobExecution) AddStepExecution(stepName string) *StepExecution {
	se := &StepExecution{
		StepName:   stepName,
		Job:        j,
		Status:     StatusStarting,
		ExitStatus: ExitExecuting,
	}
	j.mu.Lock()
	j.steps = append(j.steps, se)
	j.mu.Unlock()
	return se
}

// StepExecutions returns the step executions in registration order.
func (j *JobExecution) StepExecutions() []*StepExecution {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*StepExecution, len(j.steps))
	copy(out, j.steps)
	return out
}

// Duration is the wall time between start and end, zero while running.
func (j *JobExecution) Duration() time.Duration {
	if j.StartTime.IsZero() || j.EndTime.IsZero() {
		return 0
	}
	return j.EndTime.Sub(j.StartTime)
}

// StepExecution describes one run of a step within a job execution.
// Counters are only mutated by the goroutine running the step.
type StepExecution struct {
	StepName string
	Job      *JobExecution

	ReadCount        int64
	WriteCount       int64
	FilterCount      int64
	CommitCount      int64
	RollbackCount    int64
	ReadSkipCount    int64
	ProcessSkipCount int64
	WriteSkipCount   int64

	Status     BatchStatus
	ExitStatus ExitStatus
	Failures   []error
	StartTime  time.Time
	EndTime    time.Time

	chunkSeq atomic.Int64
}

// SkipCount is the total of read, process and write skips.
func (s *StepExecution) SkipCount() int64 {
	return s.ReadSkipCount + s.ProcessSkipCount + s.WriteSkipCount
}

// JobName returns the owning job's name, or "" for a detached step.
func (s *StepExecution) JobName() string {
	if s.Job == nil {
		return ""
	}
	return s.Job.JobName
}

// JobExecutionID returns the owning job's execution id, or 0 for a detached step.
func (s *StepExecution) JobExecutionID() int64 {
	if s.Job == nil {
		return 0
	}
	return s.Job.ID
}

// AddFailure records a failure against the step.
func (s *StepExecution) AddFailure(err error) {
	if err != nil {
		s.Failures = append(s.Failures, err)
	}
}

// NextChunk opens a chunk context with the next sequence number for this step.
func (s *StepExecution) NextChunk() *ChunkContext {
	return &ChunkContext{Step: s, Sequence: s.chunkSeq.Add(1)}
}

// ChunkContext is scoped to a single chunk, between its before and after (or error) event.
type ChunkContext struct {
	Step     *StepExecution
	Sequence int64
}
