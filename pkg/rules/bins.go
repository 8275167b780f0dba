package rules

import (
	"fmt"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/expr"
	"gonum.org/v1/gonum/stat"
)

// Absolute splits [0,1] into numBins equal-width value bins.
func Absolute(parentID, metric string, numBins int) (*Resolution, error) {
	if err := checkBins(metric, numBins); err != nil {
		return nil, err
	}
	edges := make([]float64, numBins+1)
	for i := range edges {
		edges[i] = float64(i) / float64(numBins)
	}
	return binRule(parentID, metric, edges), nil
}

// Custom splits [0,1] at caller-supplied thresholds, which must be strictly increasing
// and lie within [0,1]. len(thresholds)+1 bins are produced.
func Custom(parentID, metric string, thresholds []float64) (*Resolution, error) {
	if err := checkMetric("metric", metric); err != nil {
		return nil, err
	}
	if len(thresholds) == 0 {
		return nil, &domain.ConfigError{Field: "thresholds", Reason: "at least one threshold is required"}
	}
	for i, t := range thresholds {
		if t < 0 || t > 1 {
			return nil, &domain.ConfigError{Field: "thresholds", Reason: fmt.Sprintf("%v is outside [0,1]", t)}
		}
		if i > 0 && t <= thresholds[i-1] {
			return nil, &domain.ConfigError{Field: "thresholds", Reason: "must be strictly increasing"}
		}
	}
	edges := make([]float64, 0, len(thresholds)+2)
	edges = append(edges, 0)
	edges = append(edges, thresholds...)
	edges = append(edges, 1)
	return binRule(parentID, metric, edges), nil
}

// Percentile splits the node's population of metric values into percentile bins.
// With no explicit percentiles, numBins equal-width bins are used; explicit percentiles are
// fractions strictly increasing within (0,1). population must be sorted ascending.
func Percentile(parentID, metric string, numBins int, percentiles []float64, population []float64) (*Resolution, error) {
	if len(percentiles) == 0 {
		if err := checkBins(metric, numBins); err != nil {
			return nil, err
		}
		for i := 1; i < numBins; i++ {
			percentiles = append(percentiles, float64(i)/float64(numBins))
		}
	} else {
		if err := checkMetric("metric", metric); err != nil {
			return nil, err
		}
		for i, p := range percentiles {
			if p <= 0 || p >= 1 {
				return nil, &domain.ConfigError{Field: "percentiles", Reason: fmt.Sprintf("%v is outside (0,1)", p)}
			}
			if i > 0 && p <= percentiles[i-1] {
				return nil, &domain.ConfigError{Field: "percentiles", Reason: "must be strictly increasing"}
			}
		}
	}
	if len(population) == 0 {
		return nil, &domain.ConfigError{Field: "metric", Reason: fmt.Sprintf("no values of %q available for percentile bins", metric)}
	}

	lo, hi := 0.0, 1.0
	if population[0] < lo {
		lo = population[0]
	}
	if last := population[len(population)-1]; last > hi {
		hi = last
	}
	edges := make([]float64, 0, len(percentiles)+2)
	edges = append(edges, lo)
	for _, p := range percentiles {
		edges = append(edges, stat.Quantile(p, stat.Empirical, population, nil))
	}
	edges = append(edges, hi)
	return binRule(parentID, metric, edges), nil
}

func checkBins(metric string, numBins int) error {
	if err := checkMetric("metric", metric); err != nil {
		return err
	}
	if numBins < 2 {
		return &domain.ConfigError{Field: "num_bins", Reason: fmt.Sprintf("at least 2 bins are required, got %d", numBins)}
	}
	return nil
}

// binRule turns ascending edges e0..en into n bins [e(i), e(i+1)), closing the last
// bin with "<=" so the whole [e0, en] range is claimed exactly once.
// Values outside [e0, en] go to the nearest end bin: the first bin has no lower bound
// and the last bin is the default.
func binRule(parentID, metric string, edges []float64) *Resolution {
	n := len(edges) - 1
	branches := make([]domain.ExpressionBranch, n)
	for i := 0; i < n; i++ {
		upper := expr.Comparison{Metric: metric, Op: expr.OpLT, Value: edges[i+1]}
		if i == n-1 {
			upper.Op = expr.OpLE
		}
		var cond expr.Expr = upper
		if i > 0 {
			cond = expr.AllOf(expr.High(metric, edges[i]), upper)
		}
		branches[i] = domain.ExpressionBranch{
			ID:          fmt.Sprintf("%s_%d", metric, i),
			Condition:   cond,
			ChildID:     RangeChildID(parentID, metric, i),
			Description: cond.String(),
		}
	}
	rule := &domain.SplitRule{
		Type: domain.RuleExpression,
		Expression: &domain.ExpressionRule{
			Branches:       branches,
			DefaultChildID: branches[n-1].ChildID,
		},
	}
	res := newResolution(rule)
	res.Cuts = append([]float64(nil), edges[1:n]...)
	return res
}
