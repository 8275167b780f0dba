package process_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/gnueaj/SAE-vis-sub000"
	"github.com/gnueaj/SAE-vis-sub000/internal/testutils"
	"github.com/gnueaj/SAE-vis-sub000/pkg/adapters/process"
	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.MetricGroupProvider = (*process.Provider)(nil)
	_ ports.MetricValueSource   = (*process.Provider)(nil)
)

// TestHelperProcess is not a real test: it is the external program the provider runs.
// It answers from the score table fixture.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("SAEVIS_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	if os.Getenv("SAEVIS_HELPER_FAIL") == "1" {
		fmt.Fprint(os.Stderr, "table unavailable")
		os.Exit(3)
	}

	var in process.Request
	if err := json.NewDecoder(os.Stdin).Decode(&in); err != nil {
		fmt.Fprint(os.Stderr, err)
		os.Exit(2)
	}
	table := testutils.ScoreTable()
	ctx := context.Background()
	var out any
	switch in.Op {
	case process.OpGroups:
		var req domain.GroupRequest
		_ = json.Unmarshal(in.Request, &req)
		groups, err := table.Groups(ctx, req)
		if err != nil {
			fmt.Fprint(os.Stderr, err)
			os.Exit(1)
		}
		out = map[string]any{"groups": groups}
	case process.OpPopulation:
		ids, _ := table.Population(ctx, domain.FilterSpec{})
		out = map[string]any{"feature_ids": ids}
	case process.OpValues:
		var req struct {
			Metric string `json:"metric"`
			IDs    []int  `json:"feature_ids"`
		}
		_ = json.Unmarshal(in.Request, &req)
		values, _ := table.Values(ctx, req.Metric, req.IDs)
		out = map[string]any{"values": values}
	}
	_ = json.NewEncoder(os.Stdout).Encode(out)
}

func helper(env map[string]string) *process.Provider {
	merged := map[string]string{"SAEVIS_HELPER_PROCESS": "1"}
	for k, v := range env {
		merged[k] = v
	}
	return process.New(os.Args[0],
		process.WithArgs("-test.run=^TestHelperProcess$"),
		process.WithEnv(merged),
		process.WithTimeout(10*time.Second),
	)
}

func TestProvider_RoundTrips(t *testing.T) {
	p := helper(nil)
	ctx := context.Background()

	ids, err := p.Population(ctx, domain.FilterSpec{})
	require.NoError(t, err)
	assert.Len(t, ids, 8)

	groups, err := p.Groups(ctx, domain.GroupRequest{Metric: "score_fuzz", Thresholds: []float64{0.5}})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, 4, groups[1].Count)

	values, err := p.Values(ctx, "score_fuzz", []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{1: 0.9, 2: 0.7}, values)
}

func TestProvider_FailureQuotesStderr(t *testing.T) {
	_, err := helper(map[string]string{"SAEVIS_HELPER_FAIL": "1"}).Population(context.Background(), domain.FilterSpec{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table unavailable")
}

func TestProvider_DrivesEngine(t *testing.T) {
	eng, err := saevis.New(saevis.WithProvider(helper(nil)))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = eng.NewTree(ctx, "t")
	require.NoError(t, err)
	tree, err := eng.AddStage(ctx, "t", domain.RootID, domain.StageConfig{
		Split: domain.SplitSpec{Type: domain.SplitRange, Metric: "score_detection", Thresholds: []float64{0.5}},
	})
	require.NoError(t, err)
	testutils.RequireValidTree(t, tree)
	assert.Equal(t, []int{1, 2, 5, 6}, testutils.Items(t, tree, "root_score_detection_1"))
}
