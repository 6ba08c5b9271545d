// Package engine is a small in-process batch engine. It runs jobs made of
// chunk-oriented steps, partitioned steps and plain function steps and emits
// the job, step and chunk lifecycle events the monitor observes.
//
// It has no persistence, restart or retry policy.
package engine

import (
	"context"
	"errors"
	"io"
)

// ItemReader yields items until it returns io.EOF.
type ItemReader[I any] interface {
	Read(ctx context.Context) (I, error)
}

// ItemProcessor transforms an item. keep=false filters the item out.
type ItemProcessor[I, O any] func(ctx context.Context, item I) (out O, keep bool, err error)

// ItemWriter writes one chunk of items.
type ItemWriter[O any] func(ctx context.Context, items []O) error

// Source opens a reader for one step execution. Partitioned executions can
// look up their partition with PartitionFromContext.
type Source[I any] func(ctx context.Context) (ItemReader[I], error)

type skipError struct{ err error }

func (e *skipError) Error() string { return "skippable: " + e.err.Error() }
func (e *skipError) Unwrap() error { return e.err }

// Skip marks err as skippable: the item is counted as skipped and the chunk goes on.
func Skip(err error) error {
	if err == nil {
		return nil
	}
	return &skipError{err: err}
}

// IsSkippable reports whether err was marked with Skip.
func IsSkippable(err error) bool {
	var se *skipError
	return errors.As(err, &se)
}

type sliceReader[I any] struct {
	items []I
	pos   int
}

func (r *sliceReader[I]) Read(ctx context.Context) (I, error) {
	var zero I
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if r.pos >= len(r.items) {
		return zero, io.EOF
	}
	item := r.items[r.pos]
	r.pos++
	return item, nil
}

// FromSlice is a Source reading items in order.
func FromSlice[I any](items []I) Source[I] {
	return func(context.Context) (ItemReader[I], error) {
		return &sliceReader[I]{items: items}, nil
	}
}

// ReaderFunc adapts a function to ItemReader.
type ReaderFunc[I any] func(ctx context.Context) (I, error)

func (f ReaderFunc[I]) Read(ctx context.Context) (I, error) { return f(ctx) }
