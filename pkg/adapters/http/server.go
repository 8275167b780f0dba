package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gnueaj/SAE-vis-sub000"
	"github.com/gnueaj/SAE-vis-sub000/internal/logging"
	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/rules"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Engine is the subset of the saevis engine served over HTTP.
type Engine interface {
	NewTree(ctx context.Context, treeID string) (*domain.Tree, error)
	Tree(ctx context.Context, treeID string) (*domain.Tree, error)
	Node(ctx context.Context, treeID, nodeID string) (*domain.Node, error)
	AddStage(ctx context.Context, treeID, nodeID string, cfg domain.StageConfig) (*domain.Tree, error)
	UpdateThresholds(ctx context.Context, treeID, nodeID string, values []float64) (*domain.Tree, error)
	RemoveStage(ctx context.Context, treeID, nodeID string) (*domain.Tree, error)
	BuildTree(ctx context.Context, treeID string, stages []domain.StageConfig) (*domain.Tree, error)
	Flows(ctx context.Context, sourceID, targetID string) ([]domain.AlluvialFlow, error)
	Flatten(ctx context.Context, treeID string) (*domain.FlatTree, error)
	DeleteTree(ctx context.Context, treeID string) error
	ListTrees(ctx context.Context) ([]string, error)
}

// Server exposes tree operations as JSON over HTTP.
type Server struct {
	Engine  Engine
	Streams *StreamManager
	logger  *slog.Logger
}

// HandlerOption configures the handler returned by NewHandler.
type HandlerOption func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...HandlerOption) http.Handler {
	s := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.dropped = func(treeID string) {
		s.logger.Warn("SSE: client buffer full, dropping message", "tree_id", treeID)
	}
	return enableCORS(s.Routes())
}

// Routes builds the chi router. It is exported so callers can mount extra endpoints.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/flows", s.GetFlows)

	r.Route("/trees", func(r chi.Router) {
		r.Get("/", s.ListTrees)
		r.Post("/", s.CreateTree)
		r.Post("/build", s.BuildTree)

		r.Route("/{treeID}", func(r chi.Router) {
			r.Get("/", s.GetTree)
			r.Delete("/", s.DeleteTree)
			r.Get("/flat", s.GetFlat)
			r.Get("/events", s.SubscribeEvents)

			r.Route("/nodes/{nodeID}", func(r chi.Router) {
				r.Get("/", s.GetNode)
				r.Post("/stage", s.AddStage)
				r.Delete("/stage", s.RemoveStage)
				r.Put("/thresholds", s.UpdateThresholds)
			})
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateTreeRequest is the body of POST /trees. An empty ID gets a generated one.
type CreateTreeRequest struct {
	ID string `json:"id,omitempty"`
}

// BuildTreeRequest is the body of POST /trees/build.
type BuildTreeRequest struct {
	ID     string           `json:"id,omitempty"`
	Stages []map[string]any `json:"stages"`
}

// ThresholdsRequest is the body of PUT .../thresholds.
type ThresholdsRequest struct {
	Values []float64 `json:"values"`
}

// FlowsResponse is the body returned by GET /flows.
type FlowsResponse struct {
	Flows   []domain.AlluvialFlow `json:"flows"`
	Summary saevis.FlowSummary    `json:"summary"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListTrees handles GET /trees.
func (s *Server) ListTrees(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.ListTrees(r.Context())
	if err != nil {
		s.fail(w, r, "ListTrees", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.reply(w, http.StatusOK, map[string][]string{"trees": ids})
}

// CreateTree handles POST /trees.
func (s *Server) CreateTree(w http.ResponseWriter, r *http.Request) {
	var body CreateTreeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.reply(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	tree, err := s.Engine.NewTree(r.Context(), body.ID)
	if err != nil {
		s.fail(w, r, "CreateTree", err)
		return
	}
	s.reply(w, http.StatusCreated, tree)
}

// BuildTree handles POST /trees/build.
func (s *Server) BuildTree(w http.ResponseWriter, r *http.Request) {
	var body BuildTreeRequest
	if !s.decode(w, r, &body) {
		return
	}
	stages := make([]domain.StageConfig, len(body.Stages))
	for i, raw := range body.Stages {
		cfg, err := rules.DecodeStage(raw)
		if err != nil {
			s.fail(w, r, "BuildTree", fmt.Errorf("stage %d: %w", i, err))
			return
		}
		stages[i] = cfg
	}
	tree, err := s.Engine.BuildTree(r.Context(), body.ID, stages)
	if err != nil {
		s.fail(w, r, "BuildTree", err)
		return
	}
	s.reply(w, http.StatusCreated, tree)
}

// GetTree handles GET /trees/{treeID}.
func (s *Server) GetTree(w http.ResponseWriter, r *http.Request) {
	tree, err := s.Engine.Tree(r.Context(), chi.URLParam(r, "treeID"))
	if err != nil {
		s.fail(w, r, "GetTree", err)
		return
	}
	s.reply(w, http.StatusOK, tree)
}

// DeleteTree handles DELETE /trees/{treeID}.
func (s *Server) DeleteTree(w http.ResponseWriter, r *http.Request) {
	treeID := chi.URLParam(r, "treeID")
	if err := s.Engine.DeleteTree(r.Context(), treeID); err != nil {
		s.fail(w, r, "DeleteTree", err)
		return
	}
	s.Streams.Broadcast(treeID, `{"type":"tree_deleted"}`)
	w.WriteHeader(http.StatusNoContent)
}

// GetFlat handles GET /trees/{treeID}/flat.
func (s *Server) GetFlat(w http.ResponseWriter, r *http.Request) {
	flat, err := s.Engine.Flatten(r.Context(), chi.URLParam(r, "treeID"))
	if err != nil {
		s.fail(w, r, "GetFlat", err)
		return
	}
	s.reply(w, http.StatusOK, flat)
}

// GetNode handles GET /trees/{treeID}/nodes/{nodeID}.
func (s *Server) GetNode(w http.ResponseWriter, r *http.Request) {
	node, err := s.Engine.Node(r.Context(), chi.URLParam(r, "treeID"), chi.URLParam(r, "nodeID"))
	if err != nil {
		s.fail(w, r, "GetNode", err)
		return
	}
	s.reply(w, http.StatusOK, node)
}

// AddStage handles POST /trees/{treeID}/nodes/{nodeID}/stage.
// The body is a stage object: {"category": "...", "split": {"type": "range", ...}}.
func (s *Server) AddStage(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if !s.decode(w, r, &raw) {
		return
	}
	cfg, err := rules.DecodeStage(raw)
	if err != nil {
		s.fail(w, r, "AddStage", err)
		return
	}
	s.mutated(w, r, "AddStage", domain.EventStageAdded, func(ctx context.Context, treeID, nodeID string) (*domain.Tree, error) {
		return s.Engine.AddStage(ctx, treeID, nodeID, cfg)
	})
}

// UpdateThresholds handles PUT /trees/{treeID}/nodes/{nodeID}/thresholds.
func (s *Server) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var body ThresholdsRequest
	if !s.decode(w, r, &body) {
		return
	}
	s.mutated(w, r, "UpdateThresholds", domain.EventThresholdsUpdated, func(ctx context.Context, treeID, nodeID string) (*domain.Tree, error) {
		return s.Engine.UpdateThresholds(ctx, treeID, nodeID, body.Values)
	})
}

// RemoveStage handles DELETE /trees/{treeID}/nodes/{nodeID}/stage.
func (s *Server) RemoveStage(w http.ResponseWriter, r *http.Request) {
	s.mutated(w, r, "RemoveStage", domain.EventStageRemoved, s.Engine.RemoveStage)
}

// mutated runs a tree mutation, replies with the new tree and notifies subscribers.
func (s *Server) mutated(w http.ResponseWriter, r *http.Request, op string, kind domain.EventType, fn func(ctx context.Context, treeID, nodeID string) (*domain.Tree, error)) {
	treeID := chi.URLParam(r, "treeID")
	nodeID := chi.URLParam(r, "nodeID")
	tree, err := fn(r.Context(), treeID, nodeID)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	if msg, err := json.Marshal(map[string]any{"type": kind, "node_id": nodeID, "nodes": len(tree.Nodes)}); err == nil {
		s.Streams.Broadcast(treeID, string(msg))
	}
	s.reply(w, http.StatusOK, tree)
}

// GetFlows handles GET /flows?source={id}&target={id}.
func (s *Server) GetFlows(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	target := r.URL.Query().Get("target")
	if source == "" || target == "" {
		s.reply(w, http.StatusBadRequest, ErrorResponse{Error: "source and target are required"})
		return
	}
	flows, err := s.Engine.Flows(r.Context(), source, target)
	if err != nil {
		s.fail(w, r, "GetFlows", err)
		return
	}
	if flows == nil {
		flows = []domain.AlluvialFlow{}
	}
	s.reply(w, http.StatusOK, FlowsResponse{Flows: flows, Summary: saevis.SummarizeFlows(flows)})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.reply(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.reply(w, http.StatusOK, map[string]string{
		"app":     "saevis-http",
		"version": strings.TrimSpace(saevis.Version),
	})
}

// SubscribeEvents handles GET /trees/{treeID}/events (SSE).
// Every committed mutation of the tree is pushed as one data line.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	treeID := chi.URLParam(r, "treeID")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(treeID)
	defer cancel()
	s.logger.Info("SSE: subscribed to tree updates", "tree_id", treeID)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected", "tree_id", treeID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// StatusFor maps engine errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNodeNotFound), errors.Is(err, domain.ErrTreeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrStaleGeneration), errors.Is(err, domain.ErrTreeExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProvider):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err, "request_id", middleware.GetReqID(r.Context()))
	} else {
		s.logger.Warn(op+" rejected", "err", err, "status", status)
	}
	s.reply(w, status, ErrorResponse{Error: err.Error()})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("invalid request body", "err", err, "path", r.URL.Path)
		s.reply(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (s *Server) reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
