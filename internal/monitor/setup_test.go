package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/batchmon/internal/batch"
	"git.home.luguber.info/inful/batchmon/internal/config"
	"git.home.luguber.info/inful/batchmon/internal/engine"
	mt "git.home.luguber.info/inful/batchmon/internal/metrics/metricstest"
)

type gatewayHit struct {
	Method   string
	Grouping map[string]string
}

// grouping parses /metrics/job/<job>/<label>/<value>... into a map.
func grouping(path string) map[string]string {
	out := map[string]string{}
	parts := strings.Split(strings.TrimPrefix(path, "/metrics/"), "/")
	for i := 0; i+1 < len(parts); i += 2 {
		out[parts[i]] = parts[i+1]
	}
	return out
}

func newGateway(t *testing.T) (*httptest.Server, func() []gatewayHit) {
	t.Helper()
	var (
		mu   sync.Mutex
		hits []gatewayHit
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, gatewayHit{Method: r.Method, Grouping: grouping(r.URL.Path)})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []gatewayHit {
		mu.Lock()
		defer mu.Unlock()
		return append([]gatewayHit(nil), hits...)
	}
}

type summaryRecorder struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (r *summaryRecorder) Publish(_ context.Context, subject string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	r.payloads = append(r.payloads, data)
	return nil
}

func demoJob(partitions int) *engine.Job {
	worker := engine.NewChunkStep("load-worker", 3, engine.FromSlice([]int{1, 2, 3, 4, 5, 6, 7}),
		func(_ context.Context, n int) (int, bool, error) { return n * 2, n%7 != 0, nil },
		func(context.Context, []int) error { return nil })
	return engine.NewJob("ingest",
		engine.NewFuncStep("prepare", func(context.Context) error { return nil }),
		engine.NewPartitionStep("load", partitions, worker),
	)
}

func TestSetup_DisabledAttachesNothing(t *testing.T) {
	cfg := config.Default()
	cfg.Monitoring.Enabled = false

	m, err := Setup(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.False(t, m.Enabled())
	require.Nil(t, m.Registry())

	job := demoJob(2)
	report := m.AttachAll(context.Background(), job.Components())
	require.Zero(t, report.Attached)
	require.NoError(t, m.Close())
}

func TestSetup_EndToEnd(t *testing.T) {
	srv, hits := newGateway(t)
	cfg := config.Default()
	cfg.Monitoring.ApplicationName = "billing"
	cfg.Monitoring.Pushgateway.Enabled = true
	cfg.Monitoring.Pushgateway.URL = srv.URL
	cfg.Monitoring.NATS.Enabled = true
	cfg.Monitoring.Journal.Enabled = true
	cfg.Monitoring.Journal.Path = ":memory:"

	summaries := &summaryRecorder{}
	backend := prom.NewRegistry()
	ctx := context.Background()

	m, err := Setup(ctx, cfg, backend, WithPublisher(summaries))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, m.Close()) })
	require.NotNil(t, m.Exporter())
	require.NotNil(t, m.Journal())

	job := demoJob(3)
	report := m.AttachAll(ctx, job.Components())
	// job + partition manager + worker; the function step is skipped.
	require.Equal(t, 3, report.Attached)
	require.Equal(t, 1, report.Skipped)

	exec, err := engine.NewLauncher(engine.WithFirstExecutionID(7)).Run(ctx, job)
	require.NoError(t, err)
	require.Equal(t, batch.StatusCompleted, exec.Status)

	for i := range 3 {
		series := map[string]string{"job_name": "ingest", "step_name": "load:partition" + strconv.Itoa(i)}
		require.InDelta(t, 7, mt.CounterValue(t, backend, promStepRead, series), 0)
		require.InDelta(t, 6, mt.CounterValue(t, backend, promStepWritten, series), 0)
		require.InDelta(t, 1, mt.CounterValue(t, backend, promStepFiltered, series), 0)
		require.Equal(t, uint64(3), mt.SampleCount(t, backend, promChunkDuration, series))
	}
	require.InDelta(t, 0, mt.CounterValue(t, backend, promStepRead, stepSeries("ingest", "load")), 0)
	require.InDelta(t, 18, mt.CounterValue(t, backend, promJobItemsWritten, map[string]string{"job_name": "ingest"}), 0)
	require.InDelta(t, 1, mt.CounterValue(t, backend, promJobExecutions,
		map[string]string{"job_name": "ingest", "status": "COMPLETED"}), 0)

	require.Equal(t, []gatewayHit{{
		Method: http.MethodPut,
		Grouping: map[string]string{
			"job":              "spring-batch",
			"instance":         "billing",
			"job_execution_id": "7",
			"status":           "COMPLETED",
		},
	}}, hits())

	require.Len(t, summaries.payloads, 1)
	require.Equal(t, "batch.jobs.completed", summaries.subjects[0])
	var s batch.Summary
	require.NoError(t, json.Unmarshal(summaries.payloads[0], &s))
	require.Equal(t, "ingest", s.JobName)
	require.Equal(t, int64(7), s.JobExecutionID)

	entries, err := m.Journal().Recent(ctx, "ingest", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, int64(7), entries[0].Summary.JobExecutionID)
}

func TestSetup_NonPushCompatibleBackend(t *testing.T) {
	logs := captureLogs(t)
	srv, hits := newGateway(t)
	cfg := config.Default()
	cfg.Monitoring.Pushgateway.Enabled = true
	cfg.Monitoring.Pushgateway.URL = srv.URL

	wrapped := prom.WrapRegistererWith(prom.Labels{"region": "eu"}, prom.NewRegistry())
	ctx := context.Background()
	m, err := Setup(ctx, cfg, wrapped)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, m.Close()) })

	job := demoJob(1)
	m.AttachAll(ctx, job.Components())
	_, err = engine.NewLauncher().Run(ctx, job)
	require.NoError(t, err)

	require.Empty(t, hits())
	require.Contains(t, logs.String(), "Metric registry is not push compatible")
	require.Contains(t, logs.String(), "Skipping metrics push")
}

func TestSetup_FlusherIsStartedAndStopped(t *testing.T) {
	srv, _ := newGateway(t)
	cfg := config.Default()
	cfg.Monitoring.Pushgateway.Enabled = true
	cfg.Monitoring.Pushgateway.URL = srv.URL
	cfg.Monitoring.Pushgateway.FlushInterval = 1 << 40

	m, err := Setup(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, m.flusher)
	require.NoError(t, m.Close())
	// Closing twice is harmless.
	require.NoError(t, m.Close())
}

func TestSetup_UnreachableNATSIsLeftOut(t *testing.T) {
	logs := captureLogs(t)
	cfg := config.Default()
	cfg.Monitoring.NATS.Enabled = true
	cfg.Monitoring.NATS.URL = "nats://127.0.0.1:1"

	m, err := Setup(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, m.Close()) })
	require.True(t, m.Enabled())
	require.Contains(t, logs.String(), "Job summaries disabled")
}
