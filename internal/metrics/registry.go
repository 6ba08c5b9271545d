package metrics

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Labels is a label set keyed by dotted label key.
type Labels map[string]string

// Desc declares a metric family ahead of first use.
type Desc struct {
	Name      string
	Help      string
	Kind      Kind
	LabelKeys []string
	// Histogram selects bucketed histograms for timers; otherwise timers export count and sum.
	Histogram bool
	Buckets   []float64
}

type family struct {
	desc     Desc
	keys     []string // sorted dotted keys
	counter  *prom.CounterVec
	observer prom.ObserverVec
}

// Registry is a concurrency-safe get-or-create facade over a Prometheus registerer.
type Registry struct {
	backend  prom.Registerer
	gatherer prom.Gatherer

	mu       sync.RWMutex
	families map[string]*family
	series   map[string]any
}

// NewRegistry wraps backend. A nil backend gets a fresh *prometheus.Registry.
func NewRegistry(backend prom.Registerer) *Registry {
	if backend == nil {
		backend = prom.NewRegistry()
	}
	r := &Registry{
		backend:  backend,
		families: make(map[string]*family),
		series:   make(map[string]any),
	}
	if g, ok := backend.(prom.Gatherer); ok {
		r.gatherer = g
	}
	return r
}

// Gatherer returns the push-compatible view of the backend, if there is one.
func (r *Registry) Gatherer() (prom.Gatherer, bool) {
	return r.gatherer, r.gatherer != nil
}

// Define declares a family. Redefining an existing name with the same kind is a no-op.
func (r *Registry) Define(d Desc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.defineLocked(d)
	return err
}

// Counter returns the counter series for name and labels, creating it on first use.
func (r *Registry) Counter(name string, labels Labels) (Counter, error) {
	h, err := r.getOrCreate(KindCounter, name, labels, false)
	if err != nil {
		return nil, err
	}
	return h.(Counter), nil
}

// Timer returns the timer series for name and labels. histogram only matters
// when the call creates the family.
func (r *Registry) Timer(name string, labels Labels, histogram bool) (Timer, error) {
	h, err := r.getOrCreate(KindTimer, name, labels, histogram)
	if err != nil {
		return nil, err
	}
	return h.(Timer), nil
}

// Summary returns the distribution summary series for name and labels.
func (r *Registry) Summary(name string, labels Labels) (Summary, error) {
	h, err := r.getOrCreate(KindSummary, name, labels, false)
	if err != nil {
		return nil, err
	}
	return h.(Summary), nil
}

// SeriesCount is the number of cached series handles.
func (r *Registry) SeriesCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.series)
}

func (r *Registry) getOrCreate(kind Kind, name string, labels Labels, histogram bool) (any, error) {
	r.mu.RLock()
	f, ok := r.families[name]
	if ok {
		if f.desc.Kind != kind {
			r.mu.RUnlock()
			return nil, fmt.Errorf("metric %q is a %s, not a %s", name, f.desc.Kind, kind)
		}
		values, err := f.values(labels)
		if err != nil {
			r.mu.RUnlock()
			return nil, err
		}
		if h, hit := r.series[seriesKey(name, f.keys, values)]; hit {
			r.mu.RUnlock()
			return h, nil
		}
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.defineLocked(Desc{Name: name, Kind: kind, LabelKeys: labelKeys(labels), Histogram: histogram})
	if err != nil {
		return nil, err
	}
	values, err := f.values(labels)
	if err != nil {
		return nil, err
	}
	key := seriesKey(name, f.keys, values)
	if h, hit := r.series[key]; hit {
		return h, nil
	}

	var h any
	switch kind {
	case KindCounter:
		h = f.counter.WithLabelValues(values...)
	case KindTimer:
		h = &timer{obs: f.observer.WithLabelValues(values...)}
	case KindSummary:
		h = &summary{obs: f.observer.WithLabelValues(values...)}
	}
	r.series[key] = h
	return h, nil
}

// defineLocked returns the existing family for d.Name or creates and registers it.
func (r *Registry) defineLocked(d Desc) (*family, error) {
	if f, ok := r.families[d.Name]; ok {
		if f.desc.Kind != d.Kind {
			return nil, fmt.Errorf("metric %q is a %s, not a %s", d.Name, f.desc.Kind, d.Kind)
		}
		return f, nil
	}
	if d.Name == "" {
		return nil, errors.New("metric name must not be empty")
	}

	keys := slices.Clone(d.LabelKeys)
	slices.Sort(keys)
	if len(slices.Compact(slices.Clone(keys))) != len(keys) {
		return nil, fmt.Errorf("metric %q declares duplicate label keys", d.Name)
	}
	promLabels := make([]string, len(keys))
	for i, k := range keys {
		promLabels[i] = PrometheusLabel(k)
	}
	help := d.Help
	if help == "" {
		help = d.Name
	}
	promName := PrometheusName(d.Name, d.Kind)

	f := &family{desc: d, keys: keys}
	switch d.Kind {
	case KindCounter:
		vec := prom.NewCounterVec(prom.CounterOpts{Name: promName, Help: help}, promLabels)
		existing, err := r.register(vec)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", promName, err)
		}
		cv, ok := existing.(*prom.CounterVec)
		if !ok {
			return nil, fmt.Errorf("register %s: existing collector is %T", promName, existing)
		}
		f.counter = cv
	case KindTimer, KindSummary:
		var vec prom.Collector
		if d.Kind == KindTimer && d.Histogram {
			buckets := d.Buckets
			if len(buckets) == 0 {
				buckets = prom.DefBuckets
			}
			vec = prom.NewHistogramVec(prom.HistogramOpts{Name: promName, Help: help, Buckets: buckets}, promLabels)
		} else {
			vec = prom.NewSummaryVec(prom.SummaryOpts{Name: promName, Help: help}, promLabels)
		}
		existing, err := r.register(vec)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", promName, err)
		}
		ov, ok := existing.(prom.ObserverVec)
		if !ok {
			return nil, fmt.Errorf("register %s: existing collector is %T", promName, existing)
		}
		f.observer = ov
	default:
		return nil, fmt.Errorf("metric %q has unknown kind %d", d.Name, d.Kind)
	}
	r.families[d.Name] = f
	return f, nil
}

// register adds c to the backend, adopting an identical collector that is already there.
func (r *Registry) register(c prom.Collector) (prom.Collector, error) {
	if err := r.backend.Register(c); err != nil {
		var are prom.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector, nil
		}
		return nil, err
	}
	return c, nil
}

// values orders labels by the family's keys, filling omitted keys with "".
func (f *family) values(labels Labels) ([]string, error) {
	for k := range labels {
		if _, found := slices.BinarySearch(f.keys, k); !found {
			return nil, fmt.Errorf("metric %q has no label %q (declared: %s)", f.desc.Name, k, strings.Join(f.keys, ","))
		}
	}
	values := make([]string, len(f.keys))
	for i, k := range f.keys {
		values[i] = labels[k]
	}
	return values, nil
}

func labelKeys(labels Labels) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	return keys
}

// seriesKey is the canonical identity: name{k1="v1",k2="v2"} with keys sorted.
// Keys with empty values are left out so an omitted optional label and an
// explicit empty one resolve to the same series.
func seriesKey(name string, keys, values []string) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	first := true
	for i, k := range keys {
		if values[i] == "" {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(values[i]))
	}
	b.WriteByte('}')
	return b.String()
}
