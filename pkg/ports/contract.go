package ports

import (
	"context"
	"testing"
	"time"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contractTree builds a small two-level tree exercising every persisted field.
func contractTree(id string) *domain.Tree {
	tree := domain.NewTree(id)
	root := tree.Root()
	root.SetItems(domain.NewItemSet(1, 2, 3, 4))
	root.Spec = &domain.StageConfig{
		Category: "quality",
		Split:    domain.SplitSpec{Type: domain.SplitExpression, Branches: []domain.BranchSpec{{ID: "hi", Condition: "m >= 0.5"}}, Default: "rest"},
	}
	root.SplitRule = &domain.SplitRule{
		Type: domain.RuleExpression,
		Expression: &domain.ExpressionRule{
			Branches:       []domain.ExpressionBranch{{ID: "hi", Condition: expr.High("m", 0.5), ChildID: "root_hi", Description: "m >= 0.5"}},
			DefaultChildID: "root_rest",
		},
	}
	root.ChildrenIDs = []string{"root_hi", "root_rest"}
	root.Generation = 3
	root.Bridge = &domain.ThresholdBridge{Metric: "m", Thresholds: []float64{0.5}, Percentiles: []float64{50}, Ladder: map[int]float64{50: 0.5}}

	hi := &domain.Node{ID: "root_hi", Stage: 1, ParentID: "root", Category: "quality",
		ParentPath: []domain.PathDescriptor{{ParentID: "root", RuleType: domain.RuleExpression, BranchIndex: 0, Condition: "m >= 0.5"}}}
	hi.SetItems(domain.NewItemSet(3, 4))
	rest := &domain.Node{ID: "root_rest", Stage: 1, ParentID: "root", Category: "quality",
		ParentPath: []domain.PathDescriptor{{ParentID: "root", RuleType: domain.RuleExpression, BranchIndex: 1, Condition: "default"}}}
	rest.SetItems(domain.NewItemSet(1, 2))
	tree.Nodes[hi.ID] = hi
	tree.Nodes[rest.ID] = rest
	return tree
}

// RunTreeStoreContract runs a suite of tests to verify that a TreeStore implementation
// adheres to the defined interface contract.
func RunTreeStoreContract(t *testing.T, store TreeStore) {
	ctx := context.Background()
	treeID := "contract-test-tree-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		tree := contractTree(treeID)

		err := store.Save(ctx, tree)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, treeID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, treeID, loaded.ID)
		assert.Equal(t, tree.NodeIDs(), loaded.NodeIDs())
		assert.NoError(t, loaded.Validate())

		root := loaded.Root()
		require.NotNil(t, root.SplitRule)
		assert.Equal(t, "m >= 0.5", root.SplitRule.Expression.Branches[0].Condition.String())
		assert.Equal(t, uint64(3), root.Generation)
		assert.Equal(t, 0.5, root.Bridge.Ladder[50])
		assert.Equal(t, domain.SplitExpression, root.Spec.Split.Type)
		assert.True(t, loaded.Nodes["root_hi"].ItemIDs.Equal(domain.NewItemSet(3, 4)))
		assert.Equal(t, 1, loaded.Nodes["root_rest"].ParentPath[0].BranchIndex)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+treeID)
		assert.ErrorIs(t, err, domain.ErrTreeNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, contractTree(treeID))
		require.NoError(t, err)

		err = store.Delete(ctx, treeID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, treeID)
		assert.ErrorIs(t, err, domain.ErrTreeNotFound, "Load after Delete should return ErrTreeNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := treeID + "-1"
		id2 := treeID + "-2"
		_ = store.Save(ctx, contractTree(id1))
		_ = store.Save(ctx, contractTree(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		trees, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, trees, id1)
		assert.Contains(t, trees, id2)
	})
}
