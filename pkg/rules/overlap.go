package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/expr"
)

// MatchedID is the label of the single branch produced for single-metric overlapping groups.
const MatchedID = "matched"

// maxOverlapGroups bounds the 2^n-1 expansion of overlapping groups.
const maxOverlapGroups = 12

// Overlapping converts possibly overlapping group conditions into mutually exclusive
// branches. When every group reads the same metric, all groups collapse into one
// "matched" branch. Otherwise each non-empty combination of groups gets a branch that
// requires its groups and excludes the rest. Items matching no group go to "others".
func Overlapping(parentID string, groups []domain.GroupSpec) (*Resolution, error) {
	if len(groups) == 0 {
		return nil, &domain.ConfigError{Field: "groups", Reason: "at least one group is required"}
	}
	if len(groups) > maxOverlapGroups {
		return nil, &domain.ConfigError{Field: "groups", Reason: fmt.Sprintf("at most %d groups are supported", maxOverlapGroups)}
	}

	conds := make([]expr.Expr, len(groups))
	seen := make(map[string]bool, len(groups))
	for i, g := range groups {
		field := fmt.Sprintf("groups[%d].id", i)
		switch {
		case g.ID == "":
			return nil, &domain.ConfigError{Field: field, Reason: "required"}
		case g.ID == OthersID || g.ID == MatchedID:
			return nil, &domain.ConfigError{Field: field, Reason: fmt.Sprintf("reserved id %q", g.ID)}
		case strings.Contains(g.ID, "+"):
			return nil, &domain.ConfigError{Field: field, Reason: fmt.Sprintf("id %q must not contain '+'", g.ID)}
		case seen[g.ID]:
			return nil, &domain.ConfigError{Field: field, Reason: fmt.Sprintf("duplicate id %q", g.ID)}
		}
		seen[g.ID] = true
		c, err := parseCondition(fmt.Sprintf("groups[%d].condition", i), g.Condition)
		if err != nil {
			return nil, err
		}
		conds[i] = c
	}

	others := ChildID(parentID, OthersID)
	var branches []domain.ExpressionBranch
	if len(expr.Metrics(expr.AnyOf(conds...))) == 1 {
		ids := make([]string, len(groups))
		for i, g := range groups {
			ids[i] = g.ID
		}
		branches = append(branches, domain.ExpressionBranch{
			ID:          MatchedID,
			Condition:   expr.AnyOf(conds...),
			ChildID:     ChildID(parentID, MatchedID),
			Description: "any of " + strings.Join(ids, ", "),
		})
	} else {
		n := len(groups)
		masks := make([]int, 0, 1<<n-1)
		for mask := 1<<n - 1; mask >= 1; mask-- {
			masks = append(masks, mask)
		}
		sort.SliceStable(masks, func(a, b int) bool {
			return popcount(masks[a]) > popcount(masks[b])
		})
		for _, mask := range masks {
			in := Combination(mask, n)
			var matched, excluded []expr.Expr
			var ids []string
			for j, g := range groups {
				if in[j] {
					matched = append(matched, conds[j])
					ids = append(ids, g.ID)
				} else {
					excluded = append(excluded, conds[j])
				}
			}
			terms := matched
			if len(excluded) > 0 {
				terms = append(terms, expr.Not{Term: expr.AnyOf(excluded...)})
			}
			id := strings.Join(ids, "+")
			branches = append(branches, domain.ExpressionBranch{
				ID:          id,
				Condition:   expr.AllOf(terms...),
				ChildID:     ChildID(parentID, id),
				Description: "only " + strings.Join(ids, " and "),
			})
		}
	}

	rule := &domain.SplitRule{
		Type: domain.RuleExpression,
		Expression: &domain.ExpressionRule{
			Branches:       branches,
			DefaultChildID: others,
		},
	}
	return newResolution(rule), nil
}

func popcount(v int) int {
	n := 0
	for v != 0 {
		n += v & 1
		v >>= 1
	}
	return n
}

func parseCondition(field, s string) (expr.Expr, error) {
	if strings.TrimSpace(s) == "" {
		return nil, &domain.ConfigError{Field: field, Reason: "condition is required"}
	}
	c, err := expr.Parse(s)
	if err != nil {
		return nil, &domain.ConfigError{Field: field, Reason: err.Error()}
	}
	return c, nil
}
