package metrics

import "strings"

// Kind is the type of a metric family.
type Kind int

const (
	KindCounter Kind = iota + 1
	KindTimer
	KindSummary
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindTimer:
		return "timer"
	case KindSummary:
		return "summary"
	default:
		return "unknown"
	}
}

// PrometheusName maps a dotted metric name to its exported Prometheus name.
func PrometheusName(name string, kind Kind) string {
	n := sanitize(name)
	switch kind {
	case KindCounter:
		if !strings.HasSuffix(n, "_total") {
			n += "_total"
		}
	case KindTimer:
		if !strings.HasSuffix(n, "_seconds") {
			n += "_seconds"
		}
	}
	return n
}

// PrometheusLabel maps a dotted label key to a valid Prometheus label name.
func PrometheusLabel(key string) string {
	return sanitize(key)
}

func sanitize(s string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}
