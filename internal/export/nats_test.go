package export

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/batchmon/internal/batch"
	merrors "git.home.luguber.info/inful/batchmon/internal/errors"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestSummaryPublisher_PublishesSummary(t *testing.T) {
	pub := &recordingPublisher{}
	sp := NewSummaryPublisher(pub, "")

	job := batch.NewJobExecution(21, "ingest")
	job.StartTime = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	job.EndTime = job.StartTime.Add(2 * time.Second)
	step := job.AddStepExecution("load")
	step.ReadCount, step.WriteCount = 100, 95
	step.ExitStatus = batch.ExitCompleted
	job.Status = batch.StatusCompleted

	sp.BeforeJob(context.Background(), job)
	require.Empty(t, pub.subjects)

	sp.AfterJob(context.Background(), job)
	require.Equal(t, []string{DefaultSubject}, pub.subjects)

	var got batch.Summary
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	require.Equal(t, "ingest", got.JobName)
	require.Equal(t, int64(21), got.JobExecutionID)
	require.Equal(t, "COMPLETED", got.Status)
	require.Equal(t, int64(2000), got.DurationMS)
	require.Equal(t, int64(95), got.ItemsWritten)
	require.Len(t, got.Steps, 1)
	require.Equal(t, "load", got.Steps[0].StepName)
}

func TestSummaryPublisher_FailuresAreLogged(t *testing.T) {
	logs := captureLogs(t)
	pub := &recordingPublisher{err: errors.New("no responders")}
	sp := NewSummaryPublisher(pub, "batch.custom")

	job := batch.NewJobExecution(22, "ingest")
	job.Status = batch.StatusFailed
	require.NotPanics(t, func() { sp.AfterJob(context.Background(), job) })
	require.Equal(t, batch.StatusFailed, job.Status)
	require.Contains(t, logs.String(), "Failed to publish job summary")
	require.Contains(t, logs.String(), "batch.custom")
}

func TestConnectNATS_Unreachable(t *testing.T) {
	_, err := ConnectNATS(NATSOptions{URL: "nats://127.0.0.1:1", Name: "batchmon-test"})
	require.Error(t, err)
	require.True(t, merrors.IsCategory(err, merrors.CategoryNetwork))
}
