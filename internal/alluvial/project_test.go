package alluvial_test

import (
	"testing"

	"github.com/gnueaj/SAE-vis-sub000/internal/alluvial"
	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// split attaches leaves with the given items and category under the root of a new tree.
func split(id string, leaves map[string][]int, category string) *domain.Tree {
	tree := domain.NewTree(id)
	root := tree.Root()
	all := domain.NewItemSet()
	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		items, ok := leaves[name]
		if !ok {
			continue
		}
		child := &domain.Node{ID: "root_" + name, Stage: 1, ParentID: "root", Category: category}
		child.SetItems(domain.NewItemSet(items...))
		tree.Nodes[child.ID] = child
		ids = append(ids, child.ID)
		for _, i := range items {
			all.Add(i)
		}
	}
	root.SetItems(all)
	root.ChildrenIDs = ids
	root.SplitRule = &domain.SplitRule{Type: domain.RuleRange, Range: &domain.RangeRule{Metric: "m", ChildIDs: ids}}
	return tree
}

func TestProject_SingleOverlap(t *testing.T) {
	a := split("A", map[string][]int{"a": {1, 2, 3}}, "x")
	b := split("B", map[string][]int{"a": {2, 3, 4}}, "x")

	flows := alluvial.Project(a, b)
	require.Len(t, flows, 1)
	assert.Equal(t, domain.AlluvialFlow{
		SourceNodeID: "root_a", TargetNodeID: "root_a", Count: 2, SourceCategory: "x", TargetCategory: "x",
	}, flows[0])
	assert.True(t, flows[0].SameCategory())
}

func TestProject_SkipsEmptyPairsAndKeepsOrder(t *testing.T) {
	a := split("A", map[string][]int{"a": {1, 2}, "b": {3, 4}, "c": {}}, "left")
	b := split("B", map[string][]int{"a": {4, 1}, "b": {2}, "c": {9}}, "right")

	flows := alluvial.Project(a, b)
	require.Len(t, flows, 3)
	assert.Equal(t, "root_a", flows[0].SourceNodeID)
	assert.Equal(t, "root_a", flows[0].TargetNodeID)
	assert.Equal(t, "root_b", flows[1].TargetNodeID)
	assert.Equal(t, "root_b", flows[2].SourceNodeID)
	assert.Equal(t, 1, flows[2].Count)

	s := alluvial.Summarize(flows)
	assert.Equal(t, alluvial.Summary{Flows: 3, Items: 3, CrossCategory: 3}, s)
}

func TestProject_UnexpandedTreesUseRoots(t *testing.T) {
	a := domain.NewTree("A")
	a.Root().SetItems(domain.NewItemSet(1, 2))
	b := domain.NewTree("B")
	b.Root().SetItems(domain.NewItemSet(2, 3))
	flows := alluvial.Project(a, b)
	require.Len(t, flows, 1)
	assert.Equal(t, 1, flows[0].Count)

	assert.Empty(t, alluvial.Project(a, domain.NewTree("empty")))
}
