package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gnueaj/SAE-vis-sub000/internal/runtime"
	"github.com/gnueaj/SAE-vis-sub000/internal/testutils"
	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rangeStage(metric string, thresholds ...float64) domain.StageConfig {
	return domain.StageConfig{
		Category: metric,
		Split:    domain.SplitSpec{Type: domain.SplitRange, Metric: metric, Thresholds: thresholds},
	}
}

func populated(t *testing.T, b *runtime.Builder) *domain.Tree {
	t.Helper()
	tree, err := b.Populate(context.Background(), domain.NewTree("t"))
	require.NoError(t, err)
	return tree
}

func TestBuilder_RangeSplitExample(t *testing.T) {
	b := runtime.NewBuilder(testutils.RangeTable())
	tree := populated(t, b)
	assert.Equal(t, 5, tree.Root().ItemCount)

	out, err := b.AddStage(context.Background(), tree, domain.RootID, rangeStage("m", 0.3))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, testutils.Items(t, out, "root_m_0"))
	assert.Equal(t, []int{3, 4, 5}, testutils.Items(t, out, "root_m_1"))
	assert.Equal(t, []string{"root_m_0", "root_m_1"}, out.Root().ChildrenIDs)
	testutils.RequireValidTree(t, out)

	child := out.Nodes["root_m_1"]
	assert.Equal(t, 1, child.Stage)
	assert.Equal(t, "m", child.Category)
	require.Len(t, child.ParentPath, 1)
	assert.Equal(t, domain.PathDescriptor{ParentID: "root", RuleType: domain.RuleRange, BranchIndex: 1, Condition: "m >= 0.3"}, child.ParentPath[0])

	assert.True(t, tree.Root().IsLeaf(), "input tree must not change")
	assert.Len(t, tree.Nodes, 1)
}

func TestBuilder_UnpopulatedRootTakesFetchedGroups(t *testing.T) {
	b := runtime.NewBuilder(testutils.RangeTable())
	out, err := b.AddStage(context.Background(), domain.NewTree("t"), domain.RootID, rangeStage("m", 0.3))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, testutils.Items(t, out, domain.RootID))
	assert.Equal(t, []int{1, 2}, testutils.Items(t, out, "root_m_0"))
	testutils.RequireValidTree(t, out)
}

func TestBuilder_FlexibleSplitBatchesOneRequestPerMetric(t *testing.T) {
	provider := &testutils.RecordingProvider{Inner: testutils.ScoreTable()}
	b := runtime.NewBuilder(provider)
	tree := populated(t, b)

	out, err := b.AddStage(context.Background(), tree, domain.RootID, domain.StageConfig{
		Category: "agreement",
		Split: domain.SplitSpec{
			Type:       domain.SplitFlexible,
			Metrics:    []string{"score_fuzz", "score_detection"},
			Thresholds: []float64{0.5, 0.5},
		},
	})
	require.NoError(t, err)

	assert.Len(t, provider.Requests(), 2)
	assert.Equal(t, []int{1, 2}, testutils.Items(t, out, "root_all_2_high"))
	assert.Equal(t, []int{3, 4}, testutils.Items(t, out, "root_1_of_2_high_fuzz"))
	assert.Equal(t, []int{5, 6}, testutils.Items(t, out, "root_1_of_2_high_detection"))
	assert.Equal(t, []int{7, 8}, testutils.Items(t, out, "root_all_2_low"))
	testutils.RequireValidTree(t, out)
}

func TestBuilder_CategoryGroupsDefaultCollectsRemainder(t *testing.T) {
	b := runtime.NewBuilder(testutils.ScoreTable())
	tree := populated(t, b)

	out, err := b.AddStage(context.Background(), tree, domain.RootID, domain.StageConfig{
		Split: domain.SplitSpec{
			Type:       domain.SplitCategoryGroups,
			Metrics:    []string{"score_fuzz", "score_detection"},
			Thresholds: []float64{0.5, 0.5},
			Groups: []domain.GroupSpec{
				{ID: "agree", ColumnIDs: []string{"all_2_high", "all_2_low"}},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 7, 8}, testutils.Items(t, out, "root_agree"))
	assert.Equal(t, []int{3, 4, 5, 6}, testutils.Items(t, out, "root_others"))
	testutils.RequireValidTree(t, out)
}

func TestBuilder_ExpressionFirstMatchWins(t *testing.T) {
	b := runtime.NewBuilder(testutils.RangeTable())
	tree := populated(t, b)

	out, err := b.AddStage(context.Background(), tree, domain.RootID, domain.StageConfig{
		Split: domain.SplitSpec{
			Type: domain.SplitExpression,
			Branches: []domain.BranchSpec{
				{ID: "low", Condition: "m <= 0.2"},
				{ID: "mid", Condition: "m < 0.6"},
				{ID: "any", Condition: "m >= 0"},
			},
			Default: "rest",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, testutils.Items(t, out, "root_low"))
	assert.Equal(t, []int{3, 4}, testutils.Items(t, out, "root_mid"))
	assert.Equal(t, []int{5}, testutils.Items(t, out, "root_any"))
	assert.Empty(t, testutils.Items(t, out, "root_rest"))
	testutils.RequireValidTree(t, out)
}

func TestBuilder_AddStageRejectsInvalidState(t *testing.T) {
	b := runtime.NewBuilder(testutils.RangeTable())
	tree := populated(t, b)
	out, err := b.AddStage(context.Background(), tree, domain.RootID, rangeStage("m", 0.3))
	require.NoError(t, err)

	_, err = b.AddStage(context.Background(), out, domain.RootID, rangeStage("m", 0.5))
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = b.AddStage(context.Background(), out, "nope", rangeStage("m", 0.5))
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)

	_, err = b.AddStage(context.Background(), out, "root_m_0", domain.StageConfig{Split: domain.SplitSpec{Type: domain.SplitFlexible}})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func expressionStage(def string, branches ...domain.BranchSpec) domain.StageConfig {
	return domain.StageConfig{Split: domain.SplitSpec{Type: domain.SplitExpression, Branches: branches, Default: def}}
}

func TestBuilder_RejectsChildIDCollisions(t *testing.T) {
	ctx := context.Background()
	b := runtime.NewBuilder(testutils.RangeTable())
	tree := populated(t, b)

	tree, err := b.AddStage(ctx, tree, domain.RootID, expressionStage("fuzz_others", domain.BranchSpec{ID: "fuzz", Condition: "m >= 0.5"}))
	require.NoError(t, err)
	require.Equal(t, []string{"root_fuzz", "root_fuzz_others"}, tree.Root().ChildrenIDs)

	out, err := b.AddStage(ctx, tree, "root_fuzz", expressionStage("others", domain.BranchSpec{ID: "hi", Condition: "m >= 0.8"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Contains(t, err.Error(), "root_fuzz_others")
	assert.Same(t, tree, out)
	assert.True(t, tree.Nodes["root_fuzz"].IsLeaf())
	assert.Equal(t, domain.RootID, tree.Nodes["root_fuzz_others"].ParentID)
	assert.Equal(t, []int{1, 2, 3}, testutils.Items(t, tree, "root_fuzz_others"))

	out, err = b.AddStage(ctx, tree, "root_fuzz", expressionStage("rest", domain.BranchSpec{ID: "hi", Condition: "m >= 0.8"}))
	require.NoError(t, err)
	out, err = b.RemoveStage(ctx, out, "root_fuzz")
	require.NoError(t, err)
	testutils.RequireValidTree(t, out)
	assert.Len(t, out.Nodes, 3)
}

func TestBuilder_ApplyRejectsIDsTakenAfterPlanning(t *testing.T) {
	ctx := context.Background()
	b := runtime.NewBuilder(testutils.RangeTable())
	tree := populated(t, b)

	plan, err := b.PlanStage(ctx, tree, domain.RootID, rangeStage("m", 0.3))
	require.NoError(t, err)

	taken := tree.Clone()
	taken.Nodes["root_m_1"] = &domain.Node{ID: "root_m_1", ParentID: "elsewhere"}
	out, err := b.Apply(ctx, taken, plan)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Same(t, taken, out)
	assert.Equal(t, "elsewhere", taken.Nodes["root_m_1"].ParentID)
}

func TestBuilder_ProviderFailureLeavesTreeUntouched(t *testing.T) {
	boom := errors.New("backend down")
	provider := &testutils.RecordingProvider{Inner: testutils.RangeTable()}
	b := runtime.NewBuilder(provider)
	tree := populated(t, b)

	provider.Fail = boom
	out, err := b.AddStage(context.Background(), tree, domain.RootID, rangeStage("m", 0.3))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.ErrorIs(t, err, boom)
	assert.Same(t, tree, out)
	assert.True(t, out.Root().IsLeaf())

	provider.Fail = nil
	out, err = b.AddStage(context.Background(), tree, domain.RootID, rangeStage("m", 0.3))
	require.NoError(t, err)
	assert.Len(t, out.Nodes, 3)
}

func TestBuilder_RemoveStageDeletesWholeSubtree(t *testing.T) {
	ctx := context.Background()
	b := runtime.NewBuilder(testutils.RangeTable())
	tree := populated(t, b)

	tree, err := b.AddStage(ctx, tree, domain.RootID, rangeStage("m", 0.3))
	require.NoError(t, err)
	tree, err = b.AddStage(ctx, tree, "root_m_0", rangeStage("m", 0.15))
	require.NoError(t, err)
	tree, err = b.AddStage(ctx, tree, "root_m_1", rangeStage("m", 0.6))
	require.NoError(t, err)
	require.Len(t, tree.Nodes, 7)
	testutils.RequireValidTree(t, tree)

	var removed *domain.StageEvent
	b = runtime.NewBuilder(testutils.RangeTable(), runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnStageRemoved: func(_ context.Context, e *domain.StageEvent) { removed = e },
	}))
	out, err := b.RemoveStage(ctx, tree, domain.RootID)
	require.NoError(t, err)

	assert.Len(t, out.Nodes, 1)
	root := out.Root()
	assert.True(t, root.IsLeaf())
	assert.Empty(t, root.ChildrenIDs)
	assert.Nil(t, root.Spec)
	assert.Equal(t, 5, root.ItemCount)
	require.NotNil(t, removed)
	assert.Equal(t, 6, removed.Children)

	again, err := b.RemoveStage(ctx, out, domain.RootID)
	require.NoError(t, err)
	assert.Len(t, again.Nodes, 1)
}

func TestBuilder_UpdateThresholds(t *testing.T) {
	ctx := context.Background()
	var updated int
	b := runtime.NewBuilder(testutils.RangeTable(), runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnThresholdsUpdated: func(context.Context, *domain.StageEvent) { updated++ },
	}))
	tree := populated(t, b)
	tree, err := b.AddStage(ctx, tree, domain.RootID, rangeStage("m", 0.3))
	require.NoError(t, err)
	gen := tree.Root().Generation

	out, err := b.UpdateThresholds(ctx, tree, domain.RootID, []float64{0.45, 0.7})
	require.NoError(t, err)
	assert.Equal(t, []string{"root_m_0", "root_m_1", "root_m_2"}, out.Root().ChildrenIDs)
	assert.Equal(t, []int{1, 2, 3}, testutils.Items(t, out, "root_m_0"))
	assert.Equal(t, []int{4}, testutils.Items(t, out, "root_m_1"))
	assert.Equal(t, []int{5}, testutils.Items(t, out, "root_m_2"))
	assert.Equal(t, []float64{0.45, 0.7}, out.Root().Spec.Split.Thresholds)
	assert.Greater(t, out.Root().Generation, gen)
	assert.Equal(t, 1, updated)
	testutils.RequireValidTree(t, out)
}

func TestBuilder_UpdateThresholdsRequiresLeafChildren(t *testing.T) {
	ctx := context.Background()
	b := runtime.NewBuilder(testutils.RangeTable())
	tree := populated(t, b)

	_, err := b.UpdateThresholds(ctx, tree, domain.RootID, []float64{0.5})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	tree, err = b.AddStage(ctx, tree, domain.RootID, rangeStage("m", 0.3))
	require.NoError(t, err)
	tree, err = b.AddStage(ctx, tree, "root_m_1", rangeStage("m", 0.6))
	require.NoError(t, err)

	out, err := b.UpdateThresholds(ctx, tree, domain.RootID, []float64{0.5})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Same(t, tree, out)
}

func TestBuilder_StalePlanIsDiscarded(t *testing.T) {
	ctx := context.Background()
	b := runtime.NewBuilder(testutils.RangeTable())
	tree := populated(t, b)

	first, err := b.PlanStage(ctx, tree, domain.RootID, rangeStage("m", 0.3))
	require.NoError(t, err)
	second, err := b.PlanStage(ctx, tree, domain.RootID, rangeStage("m", 0.6))
	require.NoError(t, err)

	tree, err = b.Apply(ctx, tree, second)
	require.NoError(t, err)
	tree, err = b.RemoveStage(ctx, tree, domain.RootID)
	require.NoError(t, err)

	out, err := b.Apply(ctx, tree, first)
	assert.ErrorIs(t, err, domain.ErrStaleGeneration)
	assert.Same(t, tree, out)
}

func TestBuilder_PercentileSplitAndBridge(t *testing.T) {
	ctx := context.Background()
	table := testutils.RangeTable()
	b := runtime.NewBuilder(table, runtime.WithValueSource(table))
	tree := populated(t, b)

	out, err := b.AddStage(ctx, tree, domain.RootID, domain.StageConfig{
		Split: domain.SplitSpec{Type: domain.SplitPercentile, Metric: "m", NumBins: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, testutils.Items(t, out, "root_m_0"))
	assert.Equal(t, []int{3, 4, 5}, testutils.Items(t, out, "root_m_1"))

	br := out.Root().Bridge
	require.NotNil(t, br)
	assert.Equal(t, []float64{0.4}, br.Thresholds)
	assert.InDelta(t, 60, br.Percentiles[0], 1e-9)
	assert.Equal(t, 0.4, br.Ladder[50])
	assert.Len(t, br.Ladder, len(domain.PercentileLadder))
	testutils.RequireValidTree(t, out)

	_, err = runtime.NewBuilder(table).AddStage(ctx, tree, domain.RootID, domain.StageConfig{
		Split: domain.SplitSpec{Type: domain.SplitPercentile, Metric: "m", NumBins: 2},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestComputeBridge(t *testing.T) {
	br := runtime.ComputeBridge("m", []float64{0.3}, []float64{0.1, 0.2, 0.4, 0.5, 0.9})
	require.NotNil(t, br)
	assert.InDelta(t, 40, br.Percentiles[0], 1e-9)
	assert.Equal(t, 0.1, br.Ladder[5])
	assert.Equal(t, 0.9, br.Ladder[95])

	assert.Nil(t, runtime.ComputeBridge("m", []float64{0.3}, nil))
}
