package rules

import (
	"fmt"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/expr"
)

// NeedsPopulation reports whether resolving spec requires the node's sorted metric values.
func NeedsPopulation(spec domain.SplitSpec) bool {
	return spec.Type == domain.SplitPercentile
}

// Resolve dispatches spec to its generator. population is the node's sorted values of
// spec.Metric and is only read by percentile splits.
func Resolve(parentID string, spec domain.SplitSpec, population []float64) (*Resolution, error) {
	if parentID == "" {
		return nil, &domain.ConfigError{Field: "node", Reason: "parent id is required"}
	}
	switch spec.Type {
	case domain.SplitRange:
		return Range(parentID, spec.Metric, spec.Thresholds)
	case domain.SplitFlexible:
		return Flexible(parentID, spec.Metrics, spec.Thresholds)
	case domain.SplitCategoryGroups:
		return CategoryGroups(parentID, spec.Metrics, spec.Thresholds, spec.Groups)
	case domain.SplitPercentile:
		return Percentile(parentID, spec.Metric, spec.NumBins, spec.Percentiles, population)
	case domain.SplitAbsolute:
		return Absolute(parentID, spec.Metric, spec.NumBins)
	case domain.SplitCustom:
		return Custom(parentID, spec.Metric, spec.Thresholds)
	case domain.SplitOverlapping:
		return Overlapping(parentID, spec.Groups)
	case domain.SplitExpression:
		return Expression(parentID, spec.Branches, spec.Default)
	case "":
		return nil, &domain.ConfigError{Field: "type", Reason: "required"}
	}
	return nil, &domain.ConfigError{Field: "type", Reason: fmt.Sprintf("unknown split type %q", spec.Type)}
}

// WithValues returns a copy of spec carrying new threshold values, keeping the rule type.
// Range, flexible and category-group splits take new thresholds; percentile splits take
// new cut points; absolute and custom splits become custom splits at the given thresholds.
// Expression and overlapping splits substitute the distinct comparison values of their
// conditions, in order of first appearance.
func WithValues(spec domain.SplitSpec, values []float64) (domain.SplitSpec, error) {
	if len(values) == 0 {
		return spec, &domain.ConfigError{Field: "thresholds", Reason: "at least one value is required"}
	}
	out := spec.Clone()
	vals := append([]float64(nil), values...)
	switch spec.Type {
	case domain.SplitRange, domain.SplitFlexible, domain.SplitCategoryGroups:
		out.Thresholds = vals
	case domain.SplitPercentile:
		out.Percentiles = vals
		out.NumBins = len(vals) + 1
	case domain.SplitAbsolute, domain.SplitCustom:
		out.Type = domain.SplitCustom
		out.Thresholds = vals
		out.NumBins = 0
	case domain.SplitExpression:
		conds := make([]string, len(out.Branches))
		for i, b := range out.Branches {
			conds[i] = b.Condition
		}
		rewritten, err := substitute("branches", conds, vals)
		if err != nil {
			return spec, err
		}
		for i := range out.Branches {
			out.Branches[i].Condition = rewritten[i]
		}
	case domain.SplitOverlapping:
		conds := make([]string, len(out.Groups))
		for i, g := range out.Groups {
			conds[i] = g.Condition
		}
		rewritten, err := substitute("groups", conds, vals)
		if err != nil {
			return spec, err
		}
		for i := range out.Groups {
			out.Groups[i].Condition = rewritten[i]
		}
	default:
		return spec, &domain.ConfigError{Field: "type", Reason: fmt.Sprintf("unknown split type %q", spec.Type)}
	}
	return out, nil
}

// CurrentValues returns the values WithValues would replace.
func CurrentValues(spec domain.SplitSpec) ([]float64, error) {
	switch spec.Type {
	case domain.SplitRange, domain.SplitFlexible, domain.SplitCategoryGroups, domain.SplitCustom:
		return append([]float64(nil), spec.Thresholds...), nil
	case domain.SplitPercentile:
		return append([]float64(nil), spec.Percentiles...), nil
	case domain.SplitAbsolute:
		if spec.NumBins < 2 {
			return nil, nil
		}
		out := make([]float64, spec.NumBins-1)
		for i := range out {
			out[i] = float64(i+1) / float64(spec.NumBins)
		}
		return out, nil
	case domain.SplitExpression:
		conds := make([]string, len(spec.Branches))
		for i, b := range spec.Branches {
			conds[i] = b.Condition
		}
		return distinctValues("branches", conds)
	case domain.SplitOverlapping:
		conds := make([]string, len(spec.Groups))
		for i, g := range spec.Groups {
			conds[i] = g.Condition
		}
		return distinctValues("groups", conds)
	}
	return nil, &domain.ConfigError{Field: "type", Reason: fmt.Sprintf("unknown split type %q", spec.Type)}
}

func parseAll(field string, conds []string) ([]expr.Expr, error) {
	out := make([]expr.Expr, len(conds))
	for i, s := range conds {
		e, err := parseCondition(fmt.Sprintf("%s[%d].condition", field, i), s)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func distinctValues(field string, conds []string) ([]float64, error) {
	parsed, err := parseAll(field, conds)
	if err != nil {
		return nil, err
	}
	if len(parsed) == 0 {
		return nil, nil
	}
	return expr.Thresholds(expr.Or{Terms: parsed}), nil
}

// substitute rewrites every condition so that the k-th distinct value across all of
// them becomes values[k].
func substitute(field string, conds []string, values []float64) ([]string, error) {
	parsed, err := parseAll(field, conds)
	if err != nil {
		return nil, err
	}
	if len(parsed) == 0 {
		return nil, &domain.ConfigError{Field: field, Reason: "no conditions to update"}
	}
	all, err := expr.ReplaceThresholds(expr.Or{Terms: parsed}, values)
	if err != nil {
		return nil, &domain.ConfigError{Field: "thresholds", Reason: err.Error()}
	}
	terms := all.(expr.Or).Terms
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.String()
	}
	return out, nil
}
