package runtime

import (
	"context"
	"fmt"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/rules"
)

// StageGroups is one level of a pre-fetched tree: the k+1 groups of a range split.
type StageGroups struct {
	Metric     string
	Thresholds []float64
	Category   string
	Groups     []domain.ItemSet
}

// FetchStages fetches the groups of every stage, one request at a time.
// Only range stages can be pre-fetched.
func (b *Builder) FetchStages(ctx context.Context, stages []domain.StageConfig) ([]StageGroups, error) {
	out := make([]StageGroups, 0, len(stages))
	for i, st := range stages {
		if st.Split.Type != domain.SplitRange {
			return nil, &domain.ConfigError{Field: fmt.Sprintf("stages[%d].type", i), Reason: fmt.Sprintf("only range stages can be pre-fetched, got %q", st.Split.Type)}
		}
		if _, err := rules.Range(domain.RootID, st.Split.Metric, st.Split.Thresholds); err != nil {
			return nil, err
		}
		bins, err := b.fetchMetric(ctx, "", st.Split.Metric, st.Split.Thresholds)
		if err != nil {
			return nil, err
		}
		out = append(out, StageGroups{
			Metric:     st.Split.Metric,
			Thresholds: append([]float64(nil), st.Split.Thresholds...),
			Category:   st.Category,
			Groups:     bins.sets,
		})
	}
	return out, nil
}

// BuildFromStages builds a tree breadth-first from start, intersecting every node of a
// level with each group of the next stage. Empty intersections produce no node, so a
// bin's entry in the range rule is left blank; a node whose every intersection is empty
// stays a leaf.
func (b *Builder) BuildFromStages(ctx context.Context, treeID string, start domain.ItemSet, stages []StageGroups) *domain.Tree {
	tree := domain.NewTree(treeID)
	root := tree.Root()
	root.SetItems(start.Clone())

	frontier := []*domain.Node{root}
	for _, st := range stages {
		var next []*domain.Node
		for _, node := range frontier {
			children := b.expandWithGroups(ctx, node, st)
			for _, c := range children {
				tree.Nodes[c.ID] = c
			}
			next = append(next, children...)
		}
		frontier = next
	}
	b.logger.Info("tree built from stages", "tree_id", treeID, "stages", len(stages), "nodes", len(tree.Nodes))
	return tree
}

func (b *Builder) expandWithGroups(ctx context.Context, node *domain.Node, st StageGroups) []*domain.Node {
	ids := make([]string, len(st.Groups))
	var children []*domain.Node
	for i, g := range st.Groups {
		items := b.intersect(ctx, node.ID, st.Metric, node.ItemIDs, g)
		if items.Len() == 0 {
			continue
		}
		ids[i] = rules.RangeChildID(node.ID, st.Metric, i)
		child := &domain.Node{
			ID:       ids[i],
			Stage:    node.Stage + 1,
			Category: st.Category,
			ParentID: node.ID,
			ParentPath: append(append([]domain.PathDescriptor(nil), node.ParentPath...), domain.PathDescriptor{
				ParentID:    node.ID,
				RuleType:    domain.RuleRange,
				BranchIndex: i,
				Condition:   domain.RangeBinLabel(st.Metric, st.Thresholds, i),
			}),
		}
		child.SetItems(items)
		children = append(children, child)
	}
	if len(children) == 0 {
		return nil
	}

	node.SplitRule = &domain.SplitRule{
		Type: domain.RuleRange,
		Range: &domain.RangeRule{
			Metric:     st.Metric,
			Thresholds: append([]float64(nil), st.Thresholds...),
			ChildIDs:   ids,
		},
	}
	node.Spec = &domain.StageConfig{
		Category: st.Category,
		Split:    domain.SplitSpec{Type: domain.SplitRange, Metric: st.Metric, Thresholds: append([]float64(nil), st.Thresholds...)},
	}
	node.ChildrenIDs = make([]string, 0, len(children))
	for _, c := range children {
		node.ChildrenIDs = append(node.ChildrenIDs, c.ID)
	}
	return children
}
