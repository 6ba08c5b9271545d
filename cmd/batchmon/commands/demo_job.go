package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/batchmon/internal/engine"
)

// record is the item type of the demo job.
type record struct {
	ID        int
	Partition int
	Amount    int
}

type demoOptions struct {
	Partitions int
	Items      int
	ChunkSize  int
	// WriteDelay simulates sink latency per chunk.
	WriteDelay time.Duration
	// Fail makes partition 0 fail once it has written half of its items.
	Fail bool
}

var errSinkUnavailable = errors.New("sink unavailable")

// newDemoJob builds the "ingest" job: a preparation step followed by a
// partitioned "load" step reading synthetic records. Every 10th record is
// filtered, some are skipped on read, process or write so every counter moves.
func newDemoJob(opts demoOptions) *engine.Job {
	source := func(ctx context.Context) (engine.ItemReader[record], error) {
		partition, _ := engine.PartitionFromContext(ctx)
		next := 0
		return engine.ReaderFunc[record](func(context.Context) (record, error) {
			if next >= opts.Items {
				return record{}, io.EOF
			}
			next++
			id := partition*opts.Items + next
			if id%211 == 0 {
				return record{}, engine.Skip(fmt.Errorf("record %d: unreadable", id))
			}
			return record{ID: id, Partition: partition, Amount: id % 10}, nil
		}), nil
	}

	process := func(_ context.Context, r record) (record, bool, error) {
		switch {
		case r.ID%97 == 0:
			return record{}, false, engine.Skip(fmt.Errorf("record %d: malformed amount", r.ID))
		case r.Amount == 0:
			return record{}, false, nil
		}
		r.Amount *= 100
		return r, true, nil
	}

	write := func(ctx context.Context, items []record) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.WriteDelay):
		}
		for _, r := range items {
			if opts.Fail && r.Partition == 0 && r.ID > opts.Items/2 {
				return errSinkUnavailable
			}
			if r.ID%113 == 0 {
				return engine.Skip(fmt.Errorf("record %d: rejected by sink", r.ID))
			}
		}
		return nil
	}

	worker := engine.NewChunkStep("load-worker", opts.ChunkSize, source, process, write)
	return engine.NewJob("ingest",
		engine.NewFuncStep("prepare", func(ctx context.Context) error {
			slog.DebugContext(ctx, "Preparing demo sink", slog.Int("partitions", opts.Partitions))
			return nil
		}),
		engine.NewPartitionStep("load", opts.Partitions, worker),
	)
}
