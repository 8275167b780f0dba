package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gnueaj/SAE-vis-sub000"
	"github.com/gnueaj/SAE-vis-sub000/internal/logging"
	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/rules"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// LeafSummary is one leaf of a tree as reported to agents.
type LeafSummary struct {
	ID       string `json:"id" jsonschema_description:"Node ID of the leaf"`
	Items    int    `json:"items" jsonschema_description:"Number of items in the leaf"`
	Category string `json:"category,omitempty" jsonschema_description:"Category tag of the leaf"`
	Path     string `json:"path,omitempty" jsonschema_description:"Conditions leading from the root to the leaf"`
}

// TreeResponse is the structured result of every tree tool.
type TreeResponse struct {
	TreeID string        `json:"tree_id" jsonschema_description:"ID of the tree"`
	Nodes  int           `json:"nodes" jsonschema_description:"Number of nodes in the tree"`
	Leaves []LeafSummary `json:"leaves" jsonschema_description:"Leaves in breadth-first order"`
}

// FlowsResponse is the structured result of compute_flows.
type FlowsResponse struct {
	Flows   []domain.AlluvialFlow `json:"flows" jsonschema_description:"Weighted leaf-to-leaf flows"`
	Summary saevis.FlowSummary    `json:"summary" jsonschema_description:"Totals by category agreement"`
}

// Engine defines the operations the MCP server exposes.
type Engine interface {
	NewTree(ctx context.Context, treeID string) (*domain.Tree, error)
	Tree(ctx context.Context, treeID string) (*domain.Tree, error)
	AddStage(ctx context.Context, treeID, nodeID string, cfg domain.StageConfig) (*domain.Tree, error)
	UpdateThresholds(ctx context.Context, treeID, nodeID string, values []float64) (*domain.Tree, error)
	RemoveStage(ctx context.Context, treeID, nodeID string) (*domain.Tree, error)
	Flows(ctx context.Context, sourceID, targetID string) ([]domain.AlluvialFlow, error)
	ListTrees(ctx context.Context) ([]string, error)
}

// Server wraps the engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("saevis-mcp", strings.TrimSpace(saevis.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("create_tree",
		mcp.WithDescription("Create a classification tree whose root holds the whole item population."),
		mcp.WithString("tree_id", mcp.Description("ID of the new tree (optional, generated when omitted)")),
		mcp.WithOutputSchema[TreeResponse](),
	), mcp.NewStructuredToolHandler(s.handleCreateTree))

	s.mcpServer.AddTool(mcp.NewTool("add_stage",
		mcp.WithDescription("Split a leaf into children. The stage is a JSON object such as "+
			`{"category":"quality","split":{"type":"range","metric":"score_fuzz","thresholds":[0.3,0.7]}}.`+
			" Split types: range, flexible, category_groups, percentile, absolute, custom, overlapping, expression."),
		mcp.WithString("tree_id", mcp.Required(), mcp.Description("Tree ID")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("ID of the leaf to split")),
		mcp.WithString("stage", mcp.Required(), mcp.Description("JSON object describing the stage")),
		mcp.WithOutputSchema[TreeResponse](),
	), mcp.NewStructuredToolHandler(s.handleAddStage))

	s.mcpServer.AddTool(mcp.NewTool("update_thresholds",
		mcp.WithDescription("Regenerate the children of a split node with new threshold values. Its children must be leaves."),
		mcp.WithString("tree_id", mcp.Required(), mcp.Description("Tree ID")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("ID of the split node")),
		mcp.WithString("values", mcp.Required(), mcp.Description("JSON array of numbers, e.g. [0.4, 0.8]")),
		mcp.WithOutputSchema[TreeResponse](),
	), mcp.NewStructuredToolHandler(s.handleUpdateThresholds))

	s.mcpServer.AddTool(mcp.NewTool("remove_stage",
		mcp.WithDescription("Collapse a node back into a leaf, deleting every descendant."),
		mcp.WithString("tree_id", mcp.Required(), mcp.Description("Tree ID")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("ID of the node to collapse")),
		mcp.WithOutputSchema[TreeResponse](),
	), mcp.NewStructuredToolHandler(s.handleRemoveStage))

	s.mcpServer.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Summarize a tree: node count and every leaf with its item count."),
		mcp.WithString("tree_id", mcp.Required(), mcp.Description("Tree ID")),
		mcp.WithOutputSchema[TreeResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetTree))

	s.mcpServer.AddTool(mcp.NewTool("compute_flows",
		mcp.WithDescription("Intersect the leaves of two trees and return the weighted flows between them."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source tree ID")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Target tree ID")),
		mcp.WithOutputSchema[FlowsResponse](),
	), mcp.NewStructuredToolHandler(s.handleComputeFlows))
}

func (s *Server) handleCreateTree(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (TreeResponse, error) {
	treeID, _ := args["tree_id"].(string)
	tree, err := s.engine.NewTree(ctx, treeID)
	if err != nil {
		return TreeResponse{}, fmt.Errorf("create tree failed: %w", err)
	}
	return summarize(tree), nil
}

func (s *Server) handleAddStage(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (TreeResponse, error) {
	treeID, nodeID, err := target(args)
	if err != nil {
		return TreeResponse{}, err
	}
	stageStr, _ := args["stage"].(string)
	var raw map[string]any
	if err := json.Unmarshal([]byte(stageStr), &raw); err != nil {
		return TreeResponse{}, fmt.Errorf("stage must be a JSON object: %w", err)
	}
	cfg, err := rules.DecodeStage(raw)
	if err != nil {
		return TreeResponse{}, err
	}
	tree, err := s.engine.AddStage(ctx, treeID, nodeID, cfg)
	if err != nil {
		s.logger.Warn("MCP add_stage failed", "tree_id", treeID, "node_id", nodeID, "err", err)
		return TreeResponse{}, fmt.Errorf("add stage failed: %w", err)
	}
	return summarize(tree), nil
}

func (s *Server) handleUpdateThresholds(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (TreeResponse, error) {
	treeID, nodeID, err := target(args)
	if err != nil {
		return TreeResponse{}, err
	}
	valuesStr, _ := args["values"].(string)
	var values []float64
	if err := json.Unmarshal([]byte(valuesStr), &values); err != nil {
		return TreeResponse{}, fmt.Errorf("values must be a JSON array of numbers: %w", err)
	}
	tree, err := s.engine.UpdateThresholds(ctx, treeID, nodeID, values)
	if err != nil {
		return TreeResponse{}, fmt.Errorf("update thresholds failed: %w", err)
	}
	return summarize(tree), nil
}

func (s *Server) handleRemoveStage(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (TreeResponse, error) {
	treeID, nodeID, err := target(args)
	if err != nil {
		return TreeResponse{}, err
	}
	tree, err := s.engine.RemoveStage(ctx, treeID, nodeID)
	if err != nil {
		return TreeResponse{}, fmt.Errorf("remove stage failed: %w", err)
	}
	return summarize(tree), nil
}

func (s *Server) handleGetTree(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (TreeResponse, error) {
	treeID, _ := args["tree_id"].(string)
	tree, err := s.engine.Tree(ctx, treeID)
	if err != nil {
		return TreeResponse{}, fmt.Errorf("get tree failed: %w", err)
	}
	return summarize(tree), nil
}

func (s *Server) handleComputeFlows(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (FlowsResponse, error) {
	source, _ := args["source"].(string)
	target, _ := args["target"].(string)
	flows, err := s.engine.Flows(ctx, source, target)
	if err != nil {
		return FlowsResponse{}, fmt.Errorf("compute flows failed: %w", err)
	}
	if flows == nil {
		flows = []domain.AlluvialFlow{}
	}
	return FlowsResponse{Flows: flows, Summary: saevis.SummarizeFlows(flows)}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("saevis://trees", "Stored Trees",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.engine.ListTrees(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list trees: %w", err)
		}
		jsonBytes, _ := json.Marshal(map[string][]string{"trees": ids})

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "saevis://trees",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func target(args map[string]interface{}) (treeID, nodeID string, err error) {
	treeID, _ = args["tree_id"].(string)
	nodeID, _ = args["node_id"].(string)
	if treeID == "" || nodeID == "" {
		return "", "", errors.New("tree_id and node_id are required")
	}
	return treeID, nodeID, nil
}

func summarize(tree *domain.Tree) TreeResponse {
	resp := TreeResponse{TreeID: tree.ID, Nodes: len(tree.Nodes), Leaves: []LeafSummary{}}
	for _, leaf := range tree.Leaves() {
		var path []string
		for _, p := range leaf.ParentPath {
			path = append(path, p.Condition)
		}
		resp.Leaves = append(resp.Leaves, LeafSummary{
			ID:       leaf.ID,
			Items:    leaf.ItemCount,
			Category: leaf.Category,
			Path:     strings.Join(path, " / "),
		})
	}
	return resp
}
