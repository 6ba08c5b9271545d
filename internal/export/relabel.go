package export

import (
	"slices"
	"strings"

	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/protobuf/proto"
)

const exportedPrefix = "exported_"

// renameGroupingLabels wraps g so that metric labels clashing with the
// Pushgateway grouping key (or "job") come out as exported_<name>, the way a
// Prometheus server treats target label collisions. The push client refuses
// such metrics otherwise. Clashing labels with an empty value are dropped.
func renameGroupingLabels(g prom.Gatherer, grouping ...string) prom.Gatherer {
	reserved := append([]string{"job"}, grouping...)
	return prom.GathererFunc(func() ([]*dto.MetricFamily, error) {
		mfs, err := g.Gather()
		if err != nil {
			return nil, err
		}
		for _, mf := range mfs {
			for _, m := range mf.GetMetric() {
				if !hasReservedLabel(m, reserved) {
					continue
				}
				m.Label = relabel(m.GetLabel(), reserved)
			}
		}
		return mfs, nil
	})
}

func hasReservedLabel(m *dto.Metric, reserved []string) bool {
	for _, lp := range m.GetLabel() {
		if slices.Contains(reserved, lp.GetName()) {
			return true
		}
	}
	return false
}

func relabel(in []*dto.LabelPair, reserved []string) []*dto.LabelPair {
	out := make([]*dto.LabelPair, 0, len(in))
	for _, lp := range in {
		if !slices.Contains(reserved, lp.GetName()) {
			out = append(out, lp)
			continue
		}
		if lp.GetValue() == "" {
			continue
		}
		out = append(out, &dto.LabelPair{
			Name:  proto.String(exportedPrefix + lp.GetName()),
			Value: proto.String(lp.GetValue()),
		})
	}
	slices.SortFunc(out, func(a, b *dto.LabelPair) int {
		return strings.Compare(a.GetName(), b.GetName())
	})
	return out
}
