package batch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeStep struct{}

func (fakeStep) RegisterStepListener(StepListener) error   { return nil }
func (fakeStep) RegisterChunkListener(ChunkListener) error { return nil }

type fakeJob struct{}

func (fakeJob) RegisterJobListener(JobListener) error { return nil }

func TestComponentConstructors(t *testing.T) {
	simple := SimpleStep("load", fakeStep{})
	require.Equal(t, KindSimpleStep, simple.Kind)
	require.NotNil(t, simple.Steps)
	require.NotNil(t, simple.Chunks)

	part := PartitionStep("fanout", fakeStep{})
	require.Equal(t, KindPartitionStep, part.Kind)
	require.NotNil(t, part.Steps)
	require.Nil(t, part.Chunks)

	job := Job("ingest", fakeJob{})
	require.Equal(t, KindJob, job.Kind)
	require.NotNil(t, job.Jobs)

	other := Other("reader")
	require.Equal(t, KindOther, other.Kind)
	require.Equal(t, "other", other.Kind.String())
	require.Equal(t, "partition-step", part.Kind.String())
}
