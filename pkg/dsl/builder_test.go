package dsl_test

import (
	"testing"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_OrderedPlan(t *testing.T) {
	plan, err := dsl.New().
		Leaves().Category("quality").Range("score_fuzz", 0.3, 0.7).
		Node("root_fuzz_0").Category("agreement").Flexible([]string{"score_fuzz", "score_detection"}, []float64{0.5, 0.5}).
		Leaves().Percentile("score_fuzz", 4).
		Build()
	require.NoError(t, err)
	require.Len(t, plan, 3)

	assert.True(t, plan[0].AllLeaves())
	assert.Equal(t, domain.SplitRange, plan[0].Config.Split.Type)
	assert.Equal(t, []float64{0.3, 0.7}, plan[0].Config.Split.Thresholds)
	assert.Equal(t, "quality", plan[0].Config.Category)

	assert.Equal(t, "root_fuzz_0", plan[1].Node)
	assert.Equal(t, domain.SplitFlexible, plan[1].Config.Split.Type)

	assert.Equal(t, 4, plan[2].Config.Split.NumBins)
}

func TestBuilder_LastSplitWins(t *testing.T) {
	plan, err := dsl.New().Leaves().Range("m", 0.5).Custom("m", 0.2, 0.8).Build()
	require.NoError(t, err)
	assert.Equal(t, domain.SplitCustom, plan[0].Config.Split.Type)
}

func TestBuilder_ReportsEveryInvalidStage(t *testing.T) {
	_, err := dsl.New().
		Leaves().Custom("m", 0.7, 0.3).
		Leaves().Absolute("m", 1).
		Leaves().Expression("rest", domain.BranchSpec{ID: "hi", Condition: "m >= 0.5"}).
		Build()
	require.Error(t, err)

	var agg *domain.AggregateError
	require.ErrorAs(t, err, &agg)
	assert.Len(t, agg.Errors, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "stage 0")
	assert.Contains(t, err.Error(), "stage 1")
}

func TestBuilder_MissingSplit(t *testing.T) {
	_, err := dsl.New().Leaves().Category("empty").Build()
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestBuilder_AddAndValidate(t *testing.T) {
	stage := dsl.Stage{Node: "root", Config: domain.StageConfig{Split: domain.SplitSpec{
		Type: domain.SplitOverlapping,
		Groups: []domain.GroupSpec{
			{ID: "a", Condition: "x >= 0.5"},
			{ID: "b", Condition: "y >= 0.5"},
		},
	}}}
	require.NoError(t, dsl.Validate(stage))

	plan, err := dsl.New().Add(stage).Build()
	require.NoError(t, err)
	assert.Equal(t, []dsl.Stage{stage}, plan)
}
