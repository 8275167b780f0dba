package ports

import (
	"context"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
)

// MetricGroupProvider answers "which items fall into each bin of this metric".
// It always works on the full filtered population; scoping to a node is the engine's job.
type MetricGroupProvider interface {
	// Groups bins the population by req.Metric. k thresholds yield k+1 groups:
	// group 0 holds values below the first threshold, group i holds [t(i-1), t(i)).
	Groups(ctx context.Context, req domain.GroupRequest) ([]domain.MetricGroup, error)

	// Population returns every item ID selected by the filter.
	Population(ctx context.Context, filter domain.FilterSpec) ([]int, error)
}

// MetricValueSource exposes raw metric values for percentile computations.
type MetricValueSource interface {
	// Values returns the value of metric for each of ids that has one.
	Values(ctx context.Context, metric string, ids []int) (map[int]float64, error)
}
