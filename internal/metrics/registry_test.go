package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/batchmon/internal/metrics/metricstest"
)

func TestPrometheusNames(t *testing.T) {
	require.Equal(t, "batch_step_items_read_total", PrometheusName("batch.step.items.read", KindCounter))
	require.Equal(t, "jobs_total", PrometheusName("jobs_total", KindCounter))
	require.Equal(t, "batch_step_duration_seconds", PrometheusName("batch.step.duration", KindTimer))
	require.Equal(t, "batch_step_throughput", PrometheusName("batch.step.throughput", KindSummary))
	require.Equal(t, "job_name", PrometheusLabel("job.name"))
	require.Equal(t, "_9lives", PrometheusLabel("9lives"))
}

func TestCounterIsIdempotent(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRegistry(reg)

	a, err := r.Counter("batch.step.items.read", Labels{"job.name": "ingest", "step.name": "load"})
	require.NoError(t, err)
	// Same identity, different map iteration order.
	b, err := r.Counter("batch.step.items.read", Labels{"step.name": "load", "job.name": "ingest"})
	require.NoError(t, err)
	require.Same(t, a, b)
	require.Equal(t, 1, r.SeriesCount())

	a.Add(3)
	b.Add(2)
	require.Equal(t, 5.0, testutil.ToFloat64(a.(prom.Counter)))
	require.Equal(t, 1, metricstest.SeriesCount(t, reg, "batch_step_items_read_total"))
}

func TestZeroIncrementCreatesSeries(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRegistry(reg)

	c, err := r.Counter("batch.step.items.skipped", Labels{"job.name": "j", "step.name": "s"})
	require.NoError(t, err)
	c.Add(0)

	got := metricstest.CounterValue(t, reg, "batch_step_items_skipped_total", map[string]string{"job_name": "j", "step_name": "s"})
	require.Equal(t, 0.0, got)
}

func TestTimerHistogramAndSummaryFlavours(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRegistry(reg)

	hist, err := r.Timer("batch.step.duration", Labels{"job.name": "j"}, true)
	require.NoError(t, err)
	hist.Record(120 * time.Millisecond)

	plain, err := r.Timer("batch.chunk.duration", Labels{"job.name": "j"}, false)
	require.NoError(t, err)
	plain.Record(2 * time.Second)

	m, ok := metricstest.Find(t, reg, "batch_step_duration_seconds", map[string]string{"job_name": "j"})
	require.True(t, ok)
	require.NotNil(t, m.GetHistogram())
	require.InDelta(t, 0.12, m.GetHistogram().GetSampleSum(), 1e-9)

	m, ok = metricstest.Find(t, reg, "batch_chunk_duration_seconds", map[string]string{"job_name": "j"})
	require.True(t, ok)
	require.NotNil(t, m.GetSummary())
	require.Equal(t, uint64(1), m.GetSummary().GetSampleCount())
}

func TestSummaryRecords(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRegistry(reg)

	s, err := r.Summary("batch.step.throughput", Labels{"job.name": "j", "step.name": "s"})
	require.NoError(t, err)
	s.Record(10)
	s.Record(30)

	labels := map[string]string{"job_name": "j", "step_name": "s"}
	require.Equal(t, uint64(2), metricstest.SampleCount(t, reg, "batch_step_throughput", labels))
	require.Equal(t, 40.0, metricstest.SampleSum(t, reg, "batch_step_throughput", labels))
}

func TestDeclaredOptionalLabel(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRegistry(reg)
	require.NoError(t, r.Define(Desc{
		Name:      "batch.chunk.duration",
		Kind:      KindTimer,
		LabelKeys: []string{"job.name", "step.name", "status"},
	}))

	ok, err := r.Timer("batch.chunk.duration", Labels{"job.name": "j", "step.name": "s"}, false)
	require.NoError(t, err)
	ok.Record(time.Millisecond)

	failed, err := r.Timer("batch.chunk.duration", Labels{"job.name": "j", "step.name": "s", "status": "ERROR"}, false)
	require.NoError(t, err)
	failed.Record(time.Millisecond)
	require.NotSame(t, ok, failed)

	explicitEmpty, err := r.Timer("batch.chunk.duration", Labels{"job.name": "j", "step.name": "s", "status": ""}, false)
	require.NoError(t, err)
	require.Same(t, ok, explicitEmpty)

	require.Equal(t, uint64(1), metricstest.SampleCount(t, reg, "batch_chunk_duration_seconds", map[string]string{"job_name": "j", "step_name": "s"}))
	require.Equal(t, uint64(1), metricstest.SampleCount(t, reg, "batch_chunk_duration_seconds", map[string]string{"job_name": "j", "step_name": "s", "status": "ERROR"}))
}

func TestUnknownLabelAndKindMismatch(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Counter("batch.chunk.errors", Labels{"job.name": "j"})
	require.NoError(t, err)

	_, err = r.Counter("batch.chunk.errors", Labels{"job.name": "j", "step.name": "s"})
	require.Error(t, err)
	require.Contains(t, err.Error(), `no label "step.name"`)

	_, err = r.Timer("batch.chunk.errors", Labels{"job.name": "j"}, false)
	require.Error(t, err)

	require.Error(t, r.Define(Desc{Name: "batch.chunk.errors", Kind: KindSummary}))
	require.Error(t, r.Define(Desc{Name: "dup", Kind: KindCounter, LabelKeys: []string{"a", "a"}}))
	require.Error(t, r.Define(Desc{Name: "", Kind: KindCounter}))
}

func TestSharedBackendAdoptsExistingCollector(t *testing.T) {
	reg := prom.NewRegistry()
	first := NewRegistry(reg)
	second := NewRegistry(reg)

	a, err := first.Counter("batch.job.executions", Labels{"job.name": "j", "status": "COMPLETED"})
	require.NoError(t, err)
	b, err := second.Counter("batch.job.executions", Labels{"job.name": "j", "status": "COMPLETED"})
	require.NoError(t, err)
	a.Inc()
	b.Inc()

	require.Equal(t, 2.0, metricstest.CounterValue(t, reg, "batch_job_executions_total", map[string]string{"job_name": "j", "status": "COMPLETED"}))
}

func TestConcurrentGetOrCreate(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRegistry(reg)

	const workers = 16
	const perWorker = 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c, err := r.Counter("batch.step.items.written", Labels{"job.name": "j", "step.name": "s"})
				if err != nil {
					t.Error(err)
					return
				}
				c.Inc()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, r.SeriesCount())
	require.Equal(t, float64(workers*perWorker),
		metricstest.CounterValue(t, reg, "batch_step_items_written_total", map[string]string{"job_name": "j", "step_name": "s"}))
}

func TestGathererAvailability(t *testing.T) {
	g, ok := NewRegistry(prom.NewRegistry()).Gatherer()
	require.True(t, ok)
	require.NotNil(t, g)

	wrapped := prom.WrapRegistererWith(prom.Labels{"env": "test"}, prom.NewRegistry())
	_, ok = NewRegistry(wrapped).Gatherer()
	require.False(t, ok)
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRegistry(reg)
	require.NoError(t, RegisterRuntimeCollectors(reg))
	c, err := r.Counter("batch.chunk.errors", Labels{"job.name": "j", "step.name": "s"})
	require.NoError(t, err)
	c.Inc()

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `batch_chunk_errors_total{job_name="j",step_name="s"} 1`), body)
	require.Contains(t, body, "go_goroutines")
}
