package domain

import (
	"encoding/json"

	"github.com/gnueaj/SAE-vis-sub000/pkg/expr"
)

// RuleType tags the active variant of a SplitRule.
type RuleType string

const (
	// RuleRange splits one metric into contiguous bins.
	RuleRange RuleType = "range"
	// RulePattern matches explicit per-metric high/low combinations, first match wins.
	RulePattern RuleType = "pattern"
	// RuleExpression evaluates boolean conditions in order, first true wins.
	RuleExpression RuleType = "expression"
)

// Level is the side of a threshold a metric value falls on.
type Level string

const (
	High Level = "high"
	Low  Level = "low"
)

// SplitRule is a tagged union. Exactly one of Range, Pattern or Expression is set,
// matching Type.
type SplitRule struct {
	Type       RuleType        `json:"type"`
	Range      *RangeRule      `json:"range,omitempty"`
	Pattern    *PatternRule    `json:"pattern,omitempty"`
	Expression *ExpressionRule `json:"expression,omitempty"`
}

// RangeRule divides one metric with k ascending thresholds into k+1 half-open bins:
// (-inf, t0), [t0, t1), ..., [t(k-1), inf).
type RangeRule struct {
	Metric     string    `json:"metric"`
	Thresholds []float64 `json:"thresholds"`
	// ChildIDs holds one entry per bin. An empty entry marks a bin that was pruned.
	ChildIDs []string `json:"child_ids"`
}

// PatternEntry is one explicit high/low combination.
type PatternEntry struct {
	ID          string           `json:"id"`
	Match       map[string]Level `json:"match"`
	ChildID     string           `json:"child_id"`
	Description string           `json:"description,omitempty"`
}

// HighCount returns the number of metrics the entry requires to be high.
func (p PatternEntry) HighCount() int {
	n := 0
	for _, l := range p.Match {
		if l == High {
			n++
		}
	}
	return n
}

// PatternRule evaluates Patterns in order against per-metric thresholds.
type PatternRule struct {
	// Metrics lists the metrics in declared order.
	Metrics []string `json:"metrics"`
	// Conditions maps each metric to its threshold: value >= threshold is High.
	Conditions     map[string]float64 `json:"conditions"`
	Patterns       []PatternEntry     `json:"patterns"`
	DefaultChildID string             `json:"default_child_id,omitempty"`
}

// ExpressionBranch is one conditional branch of an ExpressionRule.
type ExpressionBranch struct {
	ID          string    `json:"-"`
	Condition   expr.Expr `json:"-"`
	ChildID     string    `json:"-"`
	Description string    `json:"-"`
}

type expressionBranchJSON struct {
	ID          string         `json:"id"`
	Condition   expr.Condition `json:"condition"`
	ChildID     string         `json:"child_id"`
	Description string         `json:"description,omitempty"`
}

// MarshalJSON renders the condition to its display string.
func (b ExpressionBranch) MarshalJSON() ([]byte, error) {
	return json.Marshal(expressionBranchJSON{
		ID:          b.ID,
		Condition:   expr.Condition{Expr: b.Condition},
		ChildID:     b.ChildID,
		Description: b.Description,
	})
}

// UnmarshalJSON parses the condition string back into an AST.
func (b *ExpressionBranch) UnmarshalJSON(data []byte) error {
	var raw expressionBranchJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = ExpressionBranch{
		ID:          raw.ID,
		Condition:   raw.Condition.Expr,
		ChildID:     raw.ChildID,
		Description: raw.Description,
	}
	return nil
}

// ExpressionRule evaluates Branches in order. Items matching no branch go to DefaultChildID,
// which is mandatory. The default may coincide with the last branch's child.
type ExpressionRule struct {
	Branches       []ExpressionBranch `json:"branches"`
	DefaultChildID string             `json:"default_child_id"`
}

// ChildIDs returns the identifiers of every child the rule declares, in order,
// with the default appended when it is not already a branch child.
func (r *SplitRule) ChildIDs() []string {
	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}

	switch r.Type {
	case RuleRange:
		if r.Range != nil {
			for _, id := range r.Range.ChildIDs {
				add(id)
			}
		}
	case RulePattern:
		if r.Pattern != nil {
			for _, p := range r.Pattern.Patterns {
				add(p.ChildID)
			}
			add(r.Pattern.DefaultChildID)
		}
	case RuleExpression:
		if r.Expression != nil {
			for _, b := range r.Expression.Branches {
				add(b.ChildID)
			}
			add(r.Expression.DefaultChildID)
		}
	}
	return ids
}

// Metrics returns the distinct metrics the rule reads, in order of first use.
func (r *SplitRule) Metrics() []string {
	switch r.Type {
	case RuleRange:
		if r.Range != nil {
			return []string{r.Range.Metric}
		}
	case RulePattern:
		if r.Pattern != nil {
			return append([]string(nil), r.Pattern.Metrics...)
		}
	case RuleExpression:
		if r.Expression != nil {
			var conds []expr.Expr
			for _, b := range r.Expression.Branches {
				conds = append(conds, b.Condition)
			}
			if len(conds) == 0 {
				return nil
			}
			return expr.Metrics(expr.AnyOf(conds...))
		}
	}
	return nil
}

// Describe returns the human-readable condition for the branch that owns childID.
func (r *SplitRule) Describe(childID string) (index int, condition string) {
	switch r.Type {
	case RuleRange:
		for i, id := range r.Range.ChildIDs {
			if id == childID {
				return i, RangeBinLabel(r.Range.Metric, r.Range.Thresholds, i)
			}
		}
	case RulePattern:
		for i, p := range r.Pattern.Patterns {
			if p.ChildID == childID {
				return i, p.ID
			}
		}
		if childID == r.Pattern.DefaultChildID {
			return len(r.Pattern.Patterns), "default"
		}
	case RuleExpression:
		for i, b := range r.Expression.Branches {
			if b.ChildID == childID {
				return i, b.Condition.String()
			}
		}
		if childID == r.Expression.DefaultChildID {
			return len(r.Expression.Branches), "default"
		}
	}
	return -1, ""
}

// RangeBinLabel renders the bounds of bin i of a range split, e.g. "0.3 <= m < 0.6".
func RangeBinLabel(metric string, thresholds []float64, i int) string {
	k := len(thresholds)
	switch {
	case k == 0:
		return metric
	case i == 0:
		return expr.Low(metric, thresholds[0]).String()
	case i >= k:
		return expr.High(metric, thresholds[k-1]).String()
	}
	return expr.AllOf(expr.High(metric, thresholds[i-1]), expr.Low(metric, thresholds[i])).String()
}
