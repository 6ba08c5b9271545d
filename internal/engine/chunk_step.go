package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"git.home.luguber.info/inful/batchmon/internal/batch"
	"git.home.luguber.info/inful/batchmon/internal/logfields"
	"git.home.luguber.info/inful/batchmon/internal/observability"
)

// ChunkStep reads, processes and writes items in chunks of ChunkSize.
//
// The same ChunkStep may execute concurrently for several partitions; all
// per-execution state lives in the batch.StepExecution.
type ChunkStep[I, O any] struct {
	name      string
	chunkSize int
	source    Source[I]
	processor ItemProcessor[I, O]
	writer    ItemWriter[O]

	mu             sync.RWMutex
	stepListeners  []batch.StepListener
	chunkListeners []batch.ChunkListener
}

// NewChunkStep builds a chunk-oriented step. processor may be nil when I and
// O are the same type; items are then passed through unchanged.
func NewChunkStep[I, O any](name string, chunkSize int, source Source[I], processor ItemProcessor[I, O], writer ItemWriter[O]) *ChunkStep[I, O] {
	if chunkSize <= 0 {
		chunkSize = 1
	}
	if processor == nil {
		processor = func(_ context.Context, item I) (O, bool, error) {
			out, ok := any(item).(O)
			if !ok {
				return out, false, fmt.Errorf("step %s: no processor for %T", name, item)
			}
			return out, true, nil
		}
	}
	return &ChunkStep[I, O]{name: name, chunkSize: chunkSize, source: source, processor: processor, writer: writer}
}

// Name returns the step name.
func (s *ChunkStep[I, O]) Name() string { return s.name }

// RegisterStepListener adds a step listener.
func (s *ChunkStep[I, O]) RegisterStepListener(l batch.StepListener) error {
	if l == nil {
		return errors.New("nil step listener")
	}
	s.mu.Lock()
	s.stepListeners = append(s.stepListeners, l)
	s.mu.Unlock()
	return nil
}

// RegisterChunkListener adds a chunk listener.
func (s *ChunkStep[I, O]) RegisterChunkListener(l batch.ChunkListener) error {
	if l == nil {
		return errors.New("nil chunk listener")
	}
	s.mu.Lock()
	s.chunkListeners = append(s.chunkListeners, l)
	s.mu.Unlock()
	return nil
}

// Components describes the step for discovery.
func (s *ChunkStep[I, O]) Components() []batch.Component {
	return []batch.Component{batch.SimpleStep(s.name, s)}
}

func (s *ChunkStep[I, O]) listeners() ([]batch.StepListener, []batch.ChunkListener) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]batch.StepListener(nil), s.stepListeners...), append([]batch.ChunkListener(nil), s.chunkListeners...)
}

// Execute runs the step as a new step execution of job.
func (s *ChunkStep[I, O]) Execute(ctx context.Context, job *batch.JobExecution) error {
	return s.execute(ctx, job.AddStepExecution(s.name))
}

func (s *ChunkStep[I, O]) execute(ctx context.Context, se *batch.StepExecution) error {
	ctx = observability.WithStep(ctx, se.StepName)
	stepListeners, chunkListeners := s.listeners()

	se.StartTime = clockFrom(ctx).Now()
	se.Status = batch.StatusStarted
	for _, l := range stepListeners {
		l.BeforeStep(ctx, se)
	}

	err := s.run(ctx, se, chunkListeners)
	switch {
	case err == nil:
		se.Status = batch.StatusCompleted
		se.ExitStatus = batch.ExitCompleted
		if se.ReadCount == 0 && se.SkipCount() == 0 {
			se.ExitStatus = batch.ExitNoop
		}
	case errors.Is(err, context.Canceled):
		se.Status = batch.StatusStopped
		se.ExitStatus = batch.ExitStopped
	default:
		se.Status = batch.StatusFailed
		se.ExitStatus = batch.ExitFailed
		se.AddFailure(err)
	}
	se.EndTime = clockFrom(ctx).Now()

	for i := len(stepListeners) - 1; i >= 0; i-- {
		se.ExitStatus = stepListeners[i].AfterStep(ctx, se)
	}

	if err != nil {
		observability.WarnContext(ctx, "Step did not complete",
			logfields.Status(se.Status.String()),
			logfields.Error(err))
		return fmt.Errorf("step %s: %w", se.StepName, err)
	}
	observability.DebugContext(ctx, "Step completed",
		logfields.ExitCode(se.ExitStatus.Code()),
		logfields.Items(se.WriteCount))
	return nil
}

func (s *ChunkStep[I, O]) run(ctx context.Context, se *batch.StepExecution, listeners []batch.ChunkListener) error {
	reader, err := s.source(ctx)
	if err != nil {
		return fmt.Errorf("open reader: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := se.NextChunk()
		for _, l := range listeners {
			l.BeforeChunk(ctx, chunk)
		}

		done, err := s.processChunk(ctx, se, reader)
		if err != nil {
			se.RollbackCount++
			for _, l := range listeners {
				l.AfterChunkError(ctx, chunk)
			}
			return err
		}
		se.CommitCount++
		for _, l := range listeners {
			l.AfterChunk(ctx, chunk)
		}
		if done {
			return nil
		}
	}
}

// processChunk handles one chunk. done reports that the reader is exhausted.
func (s *ChunkStep[I, O]) processChunk(ctx context.Context, se *batch.StepExecution, reader ItemReader[I]) (done bool, err error) {
	outputs := make([]O, 0, s.chunkSize)
	for read := 0; read < s.chunkSize; {
		item, err := reader.Read(ctx)
		if errors.Is(err, io.EOF) {
			done = true
			break
		}
		if err != nil {
			if IsSkippable(err) {
				se.ReadSkipCount++
				continue
			}
			return false, fmt.Errorf("read: %w", err)
		}
		read++
		se.ReadCount++

		out, keep, err := s.processor(ctx, item)
		if err != nil {
			if IsSkippable(err) {
				se.ProcessSkipCount++
				continue
			}
			return false, fmt.Errorf("process: %w", err)
		}
		if !keep {
			se.FilterCount++
			continue
		}
		outputs = append(outputs, out)
	}

	if len(outputs) == 0 {
		return done, nil
	}
	if err := s.write(ctx, se, outputs); err != nil {
		return false, err
	}
	return done, nil
}

// write writes the chunk. When the writer fails with a skippable error the
// chunk is rolled back and written item by item, skipping the items that fail.
func (s *ChunkStep[I, O]) write(ctx context.Context, se *batch.StepExecution, outputs []O) error {
	err := s.writer(ctx, outputs)
	if err == nil {
		se.WriteCount += int64(len(outputs))
		return nil
	}
	if !IsSkippable(err) {
		return fmt.Errorf("write: %w", err)
	}

	se.RollbackCount++
	for _, out := range outputs {
		if err := s.writer(ctx, []O{out}); err != nil {
			if IsSkippable(err) {
				se.WriteSkipCount++
				continue
			}
			return fmt.Errorf("write: %w", err)
		}
		se.WriteCount++
	}
	return nil
}
