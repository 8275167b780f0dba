// Package alluvial projects two independently built classification trees onto each
// other by intersecting the item sets of their leaves.
package alluvial

import "github.com/gnueaj/SAE-vis-sub000/pkg/domain"

// Project returns one flow for every pair of leaves (one from each tree) whose item
// sets intersect. Leaves without materialized items are skipped. Flows are ordered by
// source leaf, then target leaf, both in breadth-first order.
func Project(source, target *domain.Tree) []domain.AlluvialFlow {
	targets := materializedLeaves(target)
	owner := make(map[int][]int)
	for ti, leaf := range targets {
		for id := range leaf.ItemIDs {
			owner[id] = append(owner[id], ti)
		}
	}

	var flows []domain.AlluvialFlow
	for _, src := range materializedLeaves(source) {
		counts := make([]int, len(targets))
		for id := range src.ItemIDs {
			for _, ti := range owner[id] {
				counts[ti]++
			}
		}
		for ti, n := range counts {
			if n == 0 {
				continue
			}
			flows = append(flows, domain.AlluvialFlow{
				SourceNodeID:   src.ID,
				TargetNodeID:   targets[ti].ID,
				Count:          n,
				SourceCategory: src.Category,
				TargetCategory: targets[ti].Category,
			})
		}
	}
	return flows
}

func materializedLeaves(t *domain.Tree) []*domain.Node {
	var out []*domain.Node
	for _, n := range t.Leaves() {
		if n.ItemIDs != nil {
			out = append(out, n)
		}
	}
	return out
}

// Summary aggregates a flow list.
type Summary struct {
	Flows         int `json:"flows"`
	Items         int `json:"items"`
	SameCategory  int `json:"same_category"`
	CrossCategory int `json:"cross_category"`
}

// Summarize totals flows by whether their ends share a category.
func Summarize(flows []domain.AlluvialFlow) Summary {
	s := Summary{Flows: len(flows)}
	for _, f := range flows {
		s.Items += f.Count
		if f.SameCategory() {
			s.SameCategory += f.Count
		} else {
			s.CrossCategory += f.Count
		}
	}
	return s
}
