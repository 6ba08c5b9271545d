// Package metricstest reads gathered Prometheus samples back in tests.
package metricstest

import (
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Find returns the series of family name whose non-empty labels equal labels exactly.
func Find(t testing.TB, g prom.Gatherer, name string, labels map[string]string) (*dto.Metric, bool) {
	t.Helper()
	mfs, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m, true
			}
		}
	}
	return nil, false
}

// SeriesCount returns how many series family name has.
func SeriesCount(t testing.TB, g prom.Gatherer, name string) int {
	t.Helper()
	mfs, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return len(mf.GetMetric())
		}
	}
	return 0
}

// CounterValue returns the value of a counter series, failing the test if it does not exist.
func CounterValue(t testing.TB, g prom.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()
	m := mustFind(t, g, name, labels)
	if m.GetCounter() == nil {
		t.Fatalf("%s%v is not a counter", name, labels)
	}
	return m.GetCounter().GetValue()
}

// SampleCount returns the observation count of a histogram or summary series.
func SampleCount(t testing.TB, g prom.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()
	m := mustFind(t, g, name, labels)
	switch {
	case m.GetHistogram() != nil:
		return m.GetHistogram().GetSampleCount()
	case m.GetSummary() != nil:
		return m.GetSummary().GetSampleCount()
	}
	t.Fatalf("%s%v is neither a histogram nor a summary", name, labels)
	return 0
}

// SampleSum returns the observation sum of a histogram or summary series.
func SampleSum(t testing.TB, g prom.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()
	m := mustFind(t, g, name, labels)
	switch {
	case m.GetHistogram() != nil:
		return m.GetHistogram().GetSampleSum()
	case m.GetSummary() != nil:
		return m.GetSummary().GetSampleSum()
	}
	t.Fatalf("%s%v is neither a histogram nor a summary", name, labels)
	return 0
}

// Total adds up every series of family name whose labels include match.
// For counters sum is the counter total and count stays zero; for histograms
// and summaries sum and count are the added observation sums and counts.
func Total(t testing.TB, g prom.Gatherer, name string, match map[string]string) (sum float64, count uint64) {
	t.Helper()
	mfs, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !labelsInclude(m, match) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				sum += m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				sum += m.GetHistogram().GetSampleSum()
				count += m.GetHistogram().GetSampleCount()
			case m.GetSummary() != nil:
				sum += m.GetSummary().GetSampleSum()
				count += m.GetSummary().GetSampleCount()
			}
		}
	}
	return sum, count
}

func labelsInclude(m *dto.Metric, want map[string]string) bool {
	for k, v := range want {
		found := false
		for _, lp := range m.GetLabel() {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func mustFind(t testing.TB, g prom.Gatherer, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	m, ok := Find(t, g, name, labels)
	if !ok {
		t.Fatalf("series %s%v not found", name, labels)
	}
	return m
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		if lp.GetValue() != "" {
			got[lp.GetName()] = lp.GetValue()
		}
	}
	if len(got) != len(want) {
		return false
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}
