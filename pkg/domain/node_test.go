package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleTree builds root{1..5} split by m at 0.3.
func sampleTree() *domain.Tree {
	tree := domain.NewTree("t1")
	root := tree.Root()
	root.SetItems(domain.NewItemSet(1, 2, 3, 4, 5))
	root.SplitRule = &domain.SplitRule{
		Type: domain.RuleRange,
		Range: &domain.RangeRule{
			Metric:     "m",
			Thresholds: []float64{0.3},
			ChildIDs:   []string{"root_m_0", "root_m_1"},
		},
	}
	root.ChildrenIDs = []string{"root_m_0", "root_m_1"}

	low := &domain.Node{ID: "root_m_0", Stage: 1, ParentID: "root", Category: "low"}
	low.SetItems(domain.NewItemSet(1, 2))
	high := &domain.Node{ID: "root_m_1", Stage: 1, ParentID: "root", Category: "high"}
	high.SetItems(domain.NewItemSet(3, 4, 5))
	tree.Nodes[low.ID] = low
	tree.Nodes[high.ID] = high
	return tree
}

func TestTree_ValidateAndWalk(t *testing.T) {
	tree := sampleTree()
	require.NoError(t, tree.Validate())

	var order []string
	tree.Walk(func(n *domain.Node) { order = append(order, n.ID) })
	assert.Equal(t, []string{"root", "root_m_0", "root_m_1"}, order)
	assert.Equal(t, []string{"root_m_0", "root_m_1"}, tree.Descendants("root"))
	assert.Len(t, tree.Leaves(), 2)
}

func TestTree_ValidateReportsViolations(t *testing.T) {
	tree := sampleTree()
	tree.Nodes["root_m_1"].SetItems(domain.NewItemSet(3, 4, 42))
	tree.Nodes["root_m_0"].ItemCount = 7

	err := tree.Validate()
	require.Error(t, err)
	var agg *domain.AggregateError
	require.True(t, errors.As(err, &agg))
	assert.Len(t, agg.Errors, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestTree_WalkToleratesCycles(t *testing.T) {
	tree := sampleTree()
	tree.Nodes["root_m_0"].ChildrenIDs = []string{"root"}
	count := 0
	tree.Walk(func(*domain.Node) { count++ })
	assert.Equal(t, 3, count)
}

func TestTree_NodeNotFound(t *testing.T) {
	_, err := sampleTree().Node("missing")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestTree_CloneIsDeep(t *testing.T) {
	tree := sampleTree()
	clone := tree.Clone()
	clone.Nodes["root_m_0"].ItemIDs.Add(99)
	clone.Root().SplitRule.Range.Thresholds[0] = 0.9

	assert.False(t, tree.Nodes["root_m_0"].ItemIDs.Contains(99))
	assert.Equal(t, 0.3, tree.Root().SplitRule.Range.Thresholds[0])
}

func TestTree_Flatten(t *testing.T) {
	flat := sampleTree().Flatten()
	require.Len(t, flat.Nodes, 3)
	assert.Equal(t, []int{3, 4, 5}, flat.Nodes[2].MemberIDs)
	assert.Equal(t, []domain.FlatLink{
		{Source: "root", Target: "root_m_0", Value: 2},
		{Source: "root", Target: "root_m_1", Value: 3},
	}, flat.Links)
}

func TestSplitRule_ChildIDsAndDescribe(t *testing.T) {
	rule := &domain.SplitRule{
		Type: domain.RuleExpression,
		Expression: &domain.ExpressionRule{
			Branches: []domain.ExpressionBranch{
				{ID: "hi", Condition: expr.High("m", 0.5), ChildID: "n_hi"},
				{ID: "lo", Condition: expr.Low("m", 0.2), ChildID: "n_lo"},
			},
			DefaultChildID: "n_lo",
		},
	}
	assert.Equal(t, []string{"n_hi", "n_lo"}, rule.ChildIDs())
	idx, cond := rule.Describe("n_hi")
	assert.Equal(t, 0, idx)
	assert.Equal(t, "m >= 0.5", cond)
	assert.Equal(t, []string{"m"}, rule.Metrics())

	pruned := &domain.SplitRule{Type: domain.RuleRange, Range: &domain.RangeRule{
		Metric: "m", Thresholds: []float64{0.3, 0.6}, ChildIDs: []string{"a", "", "c"},
	}}
	assert.Equal(t, []string{"a", "c"}, pruned.ChildIDs())
	_, label := pruned.Describe("c")
	assert.Equal(t, "m >= 0.6", label)
}

func TestTree_JSONRoundTrip(t *testing.T) {
	tree := sampleTree()
	tree.Nodes["root_m_1"].SplitRule = &domain.SplitRule{
		Type: domain.RuleExpression,
		Expression: &domain.ExpressionRule{
			Branches:       []domain.ExpressionBranch{{ID: "x", Condition: expr.MustParse("a >= 0.5 && (b < 0.2 || c >= 0.1)"), ChildID: "root_m_1_x"}},
			DefaultChildID: "root_m_1_x",
		},
	}
	data, err := json.Marshal(tree)
	require.NoError(t, err)

	var back domain.Tree
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Nodes["root_m_1"].ItemIDs.Equal(domain.NewItemSet(3, 4, 5)))
	got := back.Nodes["root_m_1"].SplitRule.Expression.Branches[0].Condition
	assert.Equal(t, "a >= 0.5 && (b < 0.2 || c >= 0.1)", got.String())
}

func TestThresholdBridge_Lookup(t *testing.T) {
	b := &domain.ThresholdBridge{Ladder: map[int]float64{5: 0.1, 50: 0.5, 95: 0.9}}
	v, ok := b.ValueAt(48)
	require.True(t, ok)
	assert.Equal(t, 0.5, v)
	p, ok := b.PercentileOf(0.85)
	require.True(t, ok)
	assert.Equal(t, 95, p)

	_, ok = (&domain.ThresholdBridge{}).ValueAt(50)
	assert.False(t, ok)
}
