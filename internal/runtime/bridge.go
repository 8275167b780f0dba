package runtime

import (
	"context"
	"fmt"
	"sort"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"gonum.org/v1/gonum/stat"
)

// ComputeBridge relates thresholds on metric to a sorted population of its values.
// It returns nil when the population is empty.
func ComputeBridge(metric string, thresholds, sorted []float64) *domain.ThresholdBridge {
	if len(sorted) == 0 {
		return nil
	}
	br := &domain.ThresholdBridge{
		Metric:      metric,
		Thresholds:  append([]float64(nil), thresholds...),
		Percentiles: make([]float64, len(thresholds)),
		Ladder:      make(map[int]float64, len(domain.PercentileLadder)),
	}
	for i, t := range thresholds {
		br.Percentiles[i] = 100 * stat.CDF(t, stat.Empirical, sorted, nil)
	}
	for _, p := range domain.PercentileLadder {
		br.Ladder[p] = stat.Quantile(float64(p)/100, stat.Empirical, sorted, nil)
	}
	return br
}

// population returns the sorted values of metric over items.
func (b *Builder) population(ctx context.Context, metric string, items domain.ItemSet) ([]float64, error) {
	if b.values == nil {
		return nil, &domain.ConfigError{Field: "metric", Reason: fmt.Sprintf("no metric value source configured for %q", metric)}
	}
	values, err := b.values.Values(ctx, metric, items.Sorted())
	if err != nil {
		return nil, &domain.ProviderError{Metric: metric, Err: err}
	}
	out := make([]float64, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out, nil
}
