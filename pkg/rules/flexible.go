package rules

import (
	"fmt"
	"sort"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
)

// Flexible builds a score-agreement pattern split: every one of the 2^N high/low
// combinations of the metrics becomes a pattern, ordered from "all high" to "all low".
func Flexible(parentID string, metrics []string, thresholds []float64) (*Resolution, error) {
	if err := checkMetrics(metrics, thresholds); err != nil {
		return nil, err
	}

	n := len(metrics)
	conditions := make(map[string]float64, n)
	for j, m := range metrics {
		conditions[m] = thresholds[j]
	}

	total := 1 << n
	patterns := make([]domain.PatternEntry, 0, total)
	for i := total - 1; i >= 0; i-- {
		highs := Combination(i, n)
		match := make(map[string]domain.Level, n)
		for j, m := range metrics {
			if highs[j] {
				match[m] = domain.High
			} else {
				match[m] = domain.Low
			}
		}
		id := PatternID(metrics, highs)
		patterns = append(patterns, domain.PatternEntry{
			ID:          id,
			Match:       match,
			ChildID:     ChildID(parentID, id),
			Description: describeCombination(metrics, highs),
		})
	}
	sort.SliceStable(patterns, func(a, b int) bool {
		return patterns[a].HighCount() > patterns[b].HighCount()
	})

	rule := &domain.SplitRule{
		Type: domain.RulePattern,
		Pattern: &domain.PatternRule{
			Metrics:    append([]string(nil), metrics...),
			Conditions: conditions,
			Patterns:   patterns,
		},
	}
	res := newResolution(rule)
	if n == 1 {
		res.Cuts = []float64{thresholds[0]}
	}
	return res, nil
}

func checkMetrics(metrics []string, thresholds []float64) error {
	switch {
	case len(metrics) == 0:
		return &domain.ConfigError{Field: "metrics", Reason: "at least one metric is required"}
	case len(metrics) != len(thresholds):
		return &domain.ConfigError{Field: "thresholds", Reason: fmt.Sprintf("%d metrics but %d thresholds", len(metrics), len(thresholds))}
	case len(metrics) > maxCombinationMetrics:
		return &domain.ConfigError{Field: "metrics", Reason: fmt.Sprintf("at most %d metrics are supported", maxCombinationMetrics)}
	}
	seen := make(map[string]bool, len(metrics))
	for _, m := range metrics {
		if err := checkMetric("metrics", m); err != nil {
			return err
		}
		if seen[m] {
			return &domain.ConfigError{Field: "metrics", Reason: fmt.Sprintf("duplicate metric %q", m)}
		}
		seen[m] = true
	}
	return nil
}
