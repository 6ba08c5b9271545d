package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Counter is a monotonically increasing series. Add accepts zero.
type Counter interface {
	Inc()
	Add(float64)
}

// Timer records durations.
type Timer interface {
	Record(time.Duration)
}

// Summary records arbitrary non-negative samples (a distribution summary).
type Summary interface {
	Record(float64)
}

type timer struct{ obs prom.Observer }

func (t *timer) Record(d time.Duration) { t.obs.Observe(d.Seconds()) }

type summary struct{ obs prom.Observer }

func (s *summary) Record(v float64) { s.obs.Observe(v) }
