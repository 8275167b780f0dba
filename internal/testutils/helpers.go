package testutils

import (
	"context"
	"sync"
	"testing"

	"github.com/gnueaj/SAE-vis-sub000/pkg/adapters/memory"
	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/stretchr/testify/require"
)

// RangeTable returns the five-item table {1:0.1, 2:0.2, 3:0.4, 4:0.5, 5:0.9} on metric "m".
func RangeTable() *memory.Table {
	return memory.NewTable(
		memory.Item{ID: 1, Metrics: map[string]float64{"m": 0.1}},
		memory.Item{ID: 2, Metrics: map[string]float64{"m": 0.2}},
		memory.Item{ID: 3, Metrics: map[string]float64{"m": 0.4}},
		memory.Item{ID: 4, Metrics: map[string]float64{"m": 0.5}},
		memory.Item{ID: 5, Metrics: map[string]float64{"m": 0.9}},
	)
}

// ScoreTable returns a table of eight items over score_fuzz and score_detection,
// covering every high/low combination at 0.5 twice.
func ScoreTable() *memory.Table {
	values := [][2]float64{
		{0.9, 0.8}, {0.7, 0.6}, // both high
		{0.8, 0.1}, {0.6, 0.2}, // fuzz only
		{0.1, 0.9}, {0.3, 0.7}, // detection only
		{0.2, 0.1}, {0.0, 0.4}, // both low
	}
	items := make([]memory.Item, len(values))
	for i, v := range values {
		items[i] = memory.Item{ID: i + 1, Metrics: map[string]float64{"score_fuzz": v[0], "score_detection": v[1]}}
	}
	return memory.NewTable(items...)
}

// RequireValidTree fails the test unless every structural invariant of tree holds.
func RequireValidTree(t *testing.T, tree *domain.Tree) {
	t.Helper()
	require.NoError(t, tree.Validate(), "tree %q violates its invariants", tree.ID)
}

// Items returns the sorted item IDs of a node, failing if it does not exist.
func Items(t *testing.T, tree *domain.Tree, nodeID string) []int {
	t.Helper()
	n, err := tree.Node(nodeID)
	require.NoError(t, err)
	return n.ItemIDs.Sorted()
}

// RecordingProvider wraps a provider and records every group request.
// Fail, when set, is returned instead of delegating.
type RecordingProvider struct {
	Inner interface {
		Groups(ctx context.Context, req domain.GroupRequest) ([]domain.MetricGroup, error)
		Population(ctx context.Context, filter domain.FilterSpec) ([]int, error)
	}
	Fail error

	mu       sync.Mutex
	requests []domain.GroupRequest
}

func (p *RecordingProvider) Groups(ctx context.Context, req domain.GroupRequest) ([]domain.MetricGroup, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	if p.Fail != nil {
		return nil, p.Fail
	}
	return p.Inner.Groups(ctx, req)
}

func (p *RecordingProvider) Population(ctx context.Context, filter domain.FilterSpec) ([]int, error) {
	if p.Fail != nil {
		return nil, p.Fail
	}
	return p.Inner.Population(ctx, filter)
}

// Requests returns a copy of the recorded requests.
func (p *RecordingProvider) Requests() []domain.GroupRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.GroupRequest(nil), p.requests...)
}
