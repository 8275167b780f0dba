package rules

import (
	"fmt"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
)

// Range builds a range split of metric with the given ascending thresholds.
// k thresholds produce k+1 children named {parentID}_{metric}_{i}.
// Ordering is not re-validated here.
func Range(parentID, metric string, thresholds []float64) (*Resolution, error) {
	if err := checkMetric("metric", metric); err != nil {
		return nil, err
	}
	if len(thresholds) == 0 {
		return nil, &domain.ConfigError{Field: "thresholds", Reason: "at least one threshold is required"}
	}

	ids := make([]string, len(thresholds)+1)
	for i := range ids {
		ids[i] = RangeChildID(parentID, metric, i)
	}
	rule := &domain.SplitRule{
		Type: domain.RuleRange,
		Range: &domain.RangeRule{
			Metric:     metric,
			Thresholds: append([]float64(nil), thresholds...),
			ChildIDs:   ids,
		},
	}
	res := newResolution(rule)
	res.Cuts = append([]float64(nil), thresholds...)
	return res, nil
}

// RangeChildID names bin i of a range split.
func RangeChildID(parentID, metric string, i int) string {
	return fmt.Sprintf("%s_%s_%d", parentID, metric, i)
}

// RangeBin returns the index of the bin holding v: the number of thresholds <= v.
func RangeBin(thresholds []float64, v float64) int {
	i := 0
	for i < len(thresholds) && v >= thresholds[i] {
		i++
	}
	return i
}
