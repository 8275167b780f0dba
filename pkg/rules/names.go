package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/expr"
)

// OthersID is the label of the synthetic default branch.
const OthersID = "others"

// maxCombinationMetrics bounds the 2^N expansion.
const maxCombinationMetrics = 16

var (
	unanimousPattern = regexp.MustCompile(`^all_(\d+)_(high|low)$`)
	mixedPattern     = regexp.MustCompile(`^(\d+)_of_(\d+)_high_(.+)$`)
)

// ShortName strips the "score_" prefix from a metric name.
func ShortName(metric string) string {
	return strings.TrimPrefix(metric, "score_")
}

// checkMetric rejects metric names that condition strings could not carry.
func checkMetric(field, metric string) error {
	if metric == "" {
		return &domain.ConfigError{Field: field, Reason: "required"}
	}
	if !expr.IsMetricName(metric) {
		return &domain.ConfigError{Field: field, Reason: fmt.Sprintf("%q is not a valid metric name", metric)}
	}
	return nil
}

// ChildID joins a parent ID and a branch label.
func ChildID(parentID, label string) string {
	return parentID + "_" + label
}

// PatternID names one high/low combination over metrics.
// highs[j] reports whether metrics[j] is high.
func PatternID(metrics []string, highs []bool) string {
	n := len(metrics)
	var names []string
	for j, h := range highs {
		if h {
			names = append(names, ShortName(metrics[j]))
		}
	}
	switch len(names) {
	case n:
		return fmt.Sprintf("all_%d_high", n)
	case 0:
		return fmt.Sprintf("all_%d_low", n)
	}
	return fmt.Sprintf("%d_of_%d_high_%s", len(names), n, strings.Join(names, "_"))
}

// Combination decodes combination index i over n metrics: bit j, counted from the most
// significant of the n bits, is set when metric j is high.
func Combination(i, n int) []bool {
	highs := make([]bool, n)
	for j := 0; j < n; j++ {
		highs[j] = (i>>(n-1-j))&1 == 1
	}
	return highs
}

// CombinationIndex is the inverse of Combination.
func CombinationIndex(highs []bool) int {
	i := 0
	for _, h := range highs {
		i <<= 1
		if h {
			i |= 1
		}
	}
	return i
}

// ParseColumnID decodes a pattern identifier back into per-metric high/low flags.
func ParseColumnID(id string, metrics []string) ([]bool, error) {
	n := len(metrics)
	if m := unanimousPattern.FindStringSubmatch(id); m != nil {
		if count, _ := strconv.Atoi(m[1]); count != n {
			return nil, &domain.ConfigError{Field: "column_ids", Reason: fmt.Sprintf("%q names %d metrics, stage has %d", id, count, n)}
		}
		highs := make([]bool, n)
		if m[2] == "high" {
			for j := range highs {
				highs[j] = true
			}
		}
		return highs, nil
	}

	m := mixedPattern.FindStringSubmatch(id)
	if m == nil {
		return nil, &domain.ConfigError{Field: "column_ids", Reason: fmt.Sprintf("%q is not a pattern identifier", id)}
	}
	k, _ := strconv.Atoi(m[1])
	total, _ := strconv.Atoi(m[2])
	if total != n {
		return nil, &domain.ConfigError{Field: "column_ids", Reason: fmt.Sprintf("%q names %d metrics, stage has %d", id, total, n)}
	}

	// Names appear in declared order; short names may themselves contain underscores,
	// and one may be a prefix of another.
	highs := make([]bool, n)
	if !matchNames(m[3], metrics, 0, k, highs) {
		return nil, &domain.ConfigError{Field: "column_ids", Reason: fmt.Sprintf("%q does not match metrics %v", id, metrics)}
	}
	return highs, nil
}

// matchNames reports whether rest is exactly k short names of metrics[from:] joined by
// "_" in declared order, marking the chosen metrics in highs.
func matchNames(rest string, metrics []string, from, k int, highs []bool) bool {
	if k == 0 {
		return rest == ""
	}
	for j := from; j <= len(metrics)-k; j++ {
		short := ShortName(metrics[j])
		var tail string
		switch {
		case k == 1 && rest == short:
		case k > 1 && strings.HasPrefix(rest, short+"_"):
			tail = rest[len(short)+1:]
		default:
			continue
		}
		highs[j] = true
		if matchNames(tail, metrics, j+1, k-1, highs) {
			return true
		}
		highs[j] = false
	}
	return false
}

func describeCombination(metrics []string, highs []bool) string {
	parts := make([]string, len(metrics))
	for j, metric := range metrics {
		level := domain.Low
		if highs[j] {
			level = domain.High
		}
		parts[j] = ShortName(metric) + ": " + string(level)
	}
	return strings.Join(parts, ", ")
}
