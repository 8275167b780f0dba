package rules

import (
	"fmt"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/expr"
)

// CategoryGroups builds one expression branch per group. A group's condition ORs one
// AND-clause per column id. When the groups do not cover every 2^N combination a
// synthetic "others" default is added; otherwise the last group doubles as the default.
func CategoryGroups(parentID string, metrics []string, thresholds []float64, groups []domain.GroupSpec) (*Resolution, error) {
	if err := checkMetrics(metrics, thresholds); err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, &domain.ConfigError{Field: "groups", Reason: "at least one group is required"}
	}

	covered := make(map[int]bool)
	seenIDs := make(map[string]bool, len(groups))
	branches := make([]domain.ExpressionBranch, 0, len(groups))
	for gi, g := range groups {
		if g.ID == "" {
			return nil, &domain.ConfigError{Field: fmt.Sprintf("groups[%d].id", gi), Reason: "required"}
		}
		if seenIDs[g.ID] || g.ID == OthersID {
			return nil, &domain.ConfigError{Field: fmt.Sprintf("groups[%d].id", gi), Reason: fmt.Sprintf("duplicate or reserved id %q", g.ID)}
		}
		seenIDs[g.ID] = true
		if len(g.ColumnIDs) == 0 {
			return nil, &domain.ConfigError{Field: fmt.Sprintf("groups[%d].column_ids", gi), Reason: "at least one column id is required"}
		}

		clauses := make([]expr.Expr, 0, len(g.ColumnIDs))
		for _, col := range g.ColumnIDs {
			highs, err := ParseColumnID(col, metrics)
			if err != nil {
				return nil, err
			}
			covered[CombinationIndex(highs)] = true
			clauses = append(clauses, combinationClause(metrics, thresholds, highs))
		}

		desc := g.Description
		if desc == "" {
			desc = fmt.Sprintf("%s: %v", g.ID, g.ColumnIDs)
		}
		branches = append(branches, domain.ExpressionBranch{
			ID:          g.ID,
			Condition:   expr.AnyOf(clauses...),
			ChildID:     ChildID(parentID, g.ID),
			Description: desc,
		})
	}

	def := branches[len(branches)-1].ChildID
	if len(covered) < 1<<len(metrics) {
		def = ChildID(parentID, OthersID)
	}

	rule := &domain.SplitRule{
		Type: domain.RuleExpression,
		Expression: &domain.ExpressionRule{
			Branches:       branches,
			DefaultChildID: def,
		},
	}
	return newResolution(rule), nil
}

func combinationClause(metrics []string, thresholds []float64, highs []bool) expr.Expr {
	terms := make([]expr.Expr, len(metrics))
	for j, m := range metrics {
		if highs[j] {
			terms[j] = expr.High(m, thresholds[j])
		} else {
			terms[j] = expr.Low(m, thresholds[j])
		}
	}
	return expr.AllOf(terms...)
}
