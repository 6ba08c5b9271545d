package export

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

type gatewayRequest struct {
	Method   string
	Job      string
	Grouping map[string]string
	Families map[string]*dto.MetricFamily
}

// fakeGateway records Pushgateway requests.
type fakeGateway struct {
	*httptest.Server

	mu       sync.Mutex
	requests []gatewayRequest
	status   int

	// held and release block PUT handling while set.
	held    chan struct{}
	release chan struct{}
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{}
	g.Server = httptest.NewServer(http.HandlerFunc(g.handle))
	t.Cleanup(g.Close)
	return g
}

func (g *fakeGateway) failWith(status int) {
	g.mu.Lock()
	g.status = status
	g.mu.Unlock()
}

// holdPuts makes PUT requests wait in the handler. The returned channel
// receives once per held request; calling the returned func lets them through.
func (g *fakeGateway) holdPuts(t *testing.T) (<-chan struct{}, func()) {
	t.Helper()
	held := make(chan struct{}, 16)
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	g.mu.Lock()
	g.held, g.release = held, release
	g.mu.Unlock()
	return held, unblock
}

func (g *fakeGateway) handle(w http.ResponseWriter, r *http.Request) {
	req := gatewayRequest{Method: r.Method, Grouping: map[string]string{}, Families: map[string]*dto.MetricFamily{}}

	// /metrics/job/<job>/<label>/<value>...
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/metrics/"), "/")
	for i := 0; i+1 < len(parts); i += 2 {
		if parts[i] == "job" {
			req.Job = parts[i+1]
			continue
		}
		req.Grouping[parts[i]] = parts[i+1]
	}

	if r.Method == http.MethodPut || r.Method == http.MethodPost {
		dec := expfmt.NewDecoder(r.Body, expfmt.ResponseFormat(r.Header))
		for {
			mf := &dto.MetricFamily{}
			if err := dec.Decode(mf); err != nil {
				if !errors.Is(err, io.EOF) {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				break
			}
			req.Families[mf.GetName()] = mf
		}
	}

	g.mu.Lock()
	g.requests = append(g.requests, req)
	status := g.status
	held, release := g.held, g.release
	g.mu.Unlock()

	if release != nil && r.Method == http.MethodPut {
		held <- struct{}{}
		<-release
	}

	switch {
	case status != 0:
		http.Error(w, "unavailable", status)
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusAccepted)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (g *fakeGateway) Requests() []gatewayRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]gatewayRequest, len(g.requests))
	copy(out, g.requests)
	return out
}

func labelMap(m *dto.Metric) map[string]string {
	out := map[string]string{}
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

// captureLogs routes the default slog logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return buf
}
