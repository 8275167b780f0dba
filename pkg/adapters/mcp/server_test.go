package mcp

import (
	"context"
	"testing"

	"github.com/gnueaj/SAE-vis-sub000"
	"github.com/gnueaj/SAE-vis-sub000/internal/testutils"
	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	eng, err := saevis.New(saevis.WithProvider(testutils.ScoreTable()))
	require.NoError(t, err)
	return NewServer(eng)
}

func TestServer_StageTools(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	resp, err := s.handleCreateTree(ctx, req, map[string]interface{}{"tree_id": "t"})
	require.NoError(t, err)
	assert.Equal(t, []LeafSummary{{ID: domain.RootID, Items: 8}}, resp.Leaves)

	resp, err = s.handleAddStage(ctx, req, map[string]interface{}{
		"tree_id": "t",
		"node_id": domain.RootID,
		"stage":   `{"category":"fuzz","split":{"type":"range","metric":"score_fuzz","thresholds":[0.5]}}`,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Nodes)
	assert.Equal(t, LeafSummary{ID: "root_score_fuzz_1", Items: 4, Category: "fuzz", Path: "score_fuzz >= 0.5"}, resp.Leaves[1])

	resp, err = s.handleUpdateThresholds(ctx, req, map[string]interface{}{
		"tree_id": "t", "node_id": domain.RootID, "values": "[0.75]",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Leaves[1].Items)

	resp, err = s.handleGetTree(ctx, req, map[string]interface{}{"tree_id": "t"})
	require.NoError(t, err)
	assert.Len(t, resp.Leaves, 2)

	resp, err = s.handleRemoveStage(ctx, req, map[string]interface{}{"tree_id": "t", "node_id": domain.RootID})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Nodes)
}

func TestServer_RejectsBadArguments(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	_, err := s.handleCreateTree(ctx, req, map[string]interface{}{"tree_id": "t"})
	require.NoError(t, err)

	_, err = s.handleAddStage(ctx, req, map[string]interface{}{"tree_id": "t"})
	assert.Error(t, err)

	_, err = s.handleAddStage(ctx, req, map[string]interface{}{"tree_id": "t", "node_id": "root", "stage": "not json"})
	assert.Error(t, err)

	_, err = s.handleAddStage(ctx, req, map[string]interface{}{"tree_id": "t", "node_id": "root", "stage": `{"split":{"type":"nope"}}`})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = s.handleUpdateThresholds(ctx, req, map[string]interface{}{"tree_id": "t", "node_id": "root", "values": "0.5"})
	assert.Error(t, err)
}

func TestServer_ComputeFlows(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	for id, metric := range map[string]string{"a": "score_fuzz", "b": "score_detection"} {
		_, err := s.handleCreateTree(ctx, req, map[string]interface{}{"tree_id": id})
		require.NoError(t, err)
		_, err = s.handleAddStage(ctx, req, map[string]interface{}{
			"tree_id": id, "node_id": "root",
			"stage": `{"split":{"type":"range","metric":"` + metric + `","thresholds":[0.5]}}`,
		})
		require.NoError(t, err)
	}

	resp, err := s.handleComputeFlows(ctx, req, map[string]interface{}{"source": "a", "target": "b"})
	require.NoError(t, err)
	assert.Len(t, resp.Flows, 4)
	assert.Equal(t, 8, resp.Summary.Items)
	assert.Equal(t, 8, resp.Summary.SameCategory, "both trees leave categories empty")
}
