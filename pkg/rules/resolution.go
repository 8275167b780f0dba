package rules

import "github.com/gnueaj/SAE-vis-sub000/pkg/domain"

// Resolution is a generated rule plus the children it requires.
type Resolution struct {
	Rule     *domain.SplitRule
	ChildIDs []string
	// Metric is set when the rule reads exactly one metric.
	Metric string
	// Cuts are the interior thresholds on Metric, ascending.
	Cuts []float64
}

func newResolution(rule *domain.SplitRule) *Resolution {
	r := &Resolution{Rule: rule, ChildIDs: rule.ChildIDs()}
	if metrics := rule.Metrics(); len(metrics) == 1 {
		r.Metric = metrics[0]
	}
	return r
}
