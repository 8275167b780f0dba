package rules

import (
	"fmt"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
)

// Expression builds a rule from hand-written condition strings. The default is
// mandatory; it may name one of the branches or a separate child.
func Expression(parentID string, branches []domain.BranchSpec, def string) (*Resolution, error) {
	if len(branches) == 0 {
		return nil, &domain.ConfigError{Field: "branches", Reason: "at least one branch is required"}
	}
	if def == "" {
		return nil, &domain.ConfigError{Field: "default", Reason: "an expression split requires a default child"}
	}

	seen := make(map[string]bool, len(branches))
	out := make([]domain.ExpressionBranch, 0, len(branches))
	for i, b := range branches {
		if b.ID == "" {
			return nil, &domain.ConfigError{Field: fmt.Sprintf("branches[%d].id", i), Reason: "required"}
		}
		if seen[b.ID] {
			return nil, &domain.ConfigError{Field: fmt.Sprintf("branches[%d].id", i), Reason: fmt.Sprintf("duplicate id %q", b.ID)}
		}
		seen[b.ID] = true
		cond, err := parseCondition(fmt.Sprintf("branches[%d].condition", i), b.Condition)
		if err != nil {
			return nil, err
		}
		desc := b.Description
		if desc == "" {
			desc = cond.String()
		}
		out = append(out, domain.ExpressionBranch{
			ID:          b.ID,
			Condition:   cond,
			ChildID:     ChildID(parentID, b.ID),
			Description: desc,
		})
	}

	rule := &domain.SplitRule{
		Type: domain.RuleExpression,
		Expression: &domain.ExpressionRule{
			Branches:       out,
			DefaultChildID: ChildID(parentID, def),
		},
	}
	return newResolution(rule), nil
}
