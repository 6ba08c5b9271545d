package batch

import "context"

// JobListener observes job execution boundaries.
type JobListener interface {
	BeforeJob(ctx context.Context, job *JobExecution)
	AfterJob(ctx context.Context, job *JobExecution)
}

// StepListener observes step execution boundaries. AfterStep returns the exit
// status the engine should keep for the step.
type StepListener interface {
	BeforeStep(ctx context.Context, step *StepExecution)
	AfterStep(ctx context.Context, step *StepExecution) ExitStatus
}

// ChunkListener observes chunk boundaries. AfterChunkError replaces AfterChunk
// for a chunk that aborted.
type ChunkListener interface {
	BeforeChunk(ctx context.Context, chunk *ChunkContext)
	AfterChunk(ctx context.Context, chunk *ChunkContext)
	AfterChunkError(ctx context.Context, chunk *ChunkContext)
}
