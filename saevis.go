package saevis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gnueaj/SAE-vis-sub000/internal/alluvial"
	"github.com/gnueaj/SAE-vis-sub000/internal/logging"
	"github.com/gnueaj/SAE-vis-sub000/internal/runtime"
	"github.com/gnueaj/SAE-vis-sub000/pkg/adapters/memory"
	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/dsl"
	"github.com/gnueaj/SAE-vis-sub000/pkg/ports"
	"github.com/gnueaj/SAE-vis-sub000/pkg/session"
	"github.com/google/uuid"
)

// ErrNoProvider is returned by New when no MetricGroupProvider was configured.
var ErrNoProvider = errors.New("a metric group provider is required")

// FlowSummary totals a set of alluvial flows.
type FlowSummary = alluvial.Summary

// Engine is the high-level entry point of the library.
// It owns tree persistence and serializes every mutation of a tree.
type Engine struct {
	builder  *runtime.Builder
	sessions *session.Manager

	provider ports.MetricGroupProvider
	values   ports.MetricValueSource
	store    ports.TreeStore
	locker   ports.DistributedLocker
	lockTTL  time.Duration
	filter   domain.FilterSpec
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithProvider sets the source of metric groups. Required.
// When the provider also implements ports.MetricValueSource it is used for
// percentile splits unless WithValueSource says otherwise.
func WithProvider(p ports.MetricGroupProvider) Option {
	return func(e *Engine) {
		e.provider = p
	}
}

// WithValueSource enables percentile splits and threshold bridges.
func WithValueSource(v ports.MetricValueSource) Option {
	return func(e *Engine) {
		e.values = v
	}
}

// WithStore sets where trees are persisted. Defaults to an in-memory store.
func WithStore(s ports.TreeStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLocker enables distributed locking of trees across replicas.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithLockTTL sets the expiry of distributed tree locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
	}
}

// WithFilter scopes every provider request made by the engine.
func WithFilter(f domain.FilterSpec) Option {
	return func(e *Engine) {
		e.filter = f
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New initializes an Engine.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.provider == nil {
		return nil, ErrNoProvider
	}
	if eng.values == nil {
		if v, ok := eng.provider.(ports.MetricValueSource); ok {
			eng.values = v
		}
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	builderOpts := []runtime.BuilderOption{
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithFilter(eng.filter),
	}
	if eng.values != nil {
		builderOpts = append(builderOpts, runtime.WithValueSource(eng.values))
	}
	eng.builder = runtime.NewBuilder(eng.provider, builderOpts...)

	sessionOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
	}
	if eng.lockTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithLockTTL(eng.lockTTL))
	}
	eng.sessions = session.NewManager(eng.store, sessionOpts...)

	return eng, nil
}

// NewTree creates a tree whose root holds the whole filtered population.
// An empty treeID gets a generated one.
func (e *Engine) NewTree(ctx context.Context, treeID string) (*domain.Tree, error) {
	if treeID == "" {
		treeID = uuid.NewString()
	}
	tree, err := e.builder.Populate(ctx, domain.NewTree(treeID))
	if err != nil {
		return nil, err
	}
	if err := e.sessions.Create(ctx, tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// Tree loads a stored tree.
func (e *Engine) Tree(ctx context.Context, treeID string) (*domain.Tree, error) {
	return e.sessions.Load(ctx, treeID)
}

// Node loads one node of a stored tree, including its threshold bridge.
func (e *Engine) Node(ctx context.Context, treeID, nodeID string) (*domain.Node, error) {
	tree, err := e.sessions.Load(ctx, treeID)
	if err != nil {
		return nil, err
	}
	return tree.Node(nodeID)
}

// AddStage expands a leaf of a stored tree.
// Provider round trips happen before the tree is locked; if another mutation of the
// same node commits in between, the result is discarded with ErrStaleGeneration.
func (e *Engine) AddStage(ctx context.Context, treeID, nodeID string, cfg domain.StageConfig) (*domain.Tree, error) {
	tree, err := e.sessions.Load(ctx, treeID)
	if err != nil {
		return nil, err
	}
	plan, err := e.builder.PlanStage(ctx, tree, nodeID, cfg)
	if err != nil {
		return nil, err
	}
	return e.commit(ctx, treeID, plan)
}

// UpdateThresholds regenerates the children of an expanded node with new values.
func (e *Engine) UpdateThresholds(ctx context.Context, treeID, nodeID string, values []float64) (*domain.Tree, error) {
	tree, err := e.sessions.Load(ctx, treeID)
	if err != nil {
		return nil, err
	}
	plan, err := e.builder.PlanThresholds(ctx, tree, nodeID, values)
	if err != nil {
		return nil, err
	}
	return e.commit(ctx, treeID, plan)
}

// ApplyPlan commits a plan computed by a caller holding its own copy of the tree.
func (e *Engine) ApplyPlan(ctx context.Context, treeID string, plan *runtime.Plan) (*domain.Tree, error) {
	return e.commit(ctx, treeID, plan)
}

func (e *Engine) commit(ctx context.Context, treeID string, plan *runtime.Plan) (*domain.Tree, error) {
	out, err := e.sessions.Update(ctx, treeID, func(ctx context.Context, current *domain.Tree) (*domain.Tree, error) {
		return e.builder.Apply(ctx, current, plan)
	})
	if errors.Is(err, domain.ErrStaleGeneration) {
		e.logger.Info("discarded stale stage result", "tree_id", treeID, "node_id", plan.NodeID, "generation", plan.Generation)
	}
	return out, err
}

// RemoveStage collapses a node of a stored tree back into a leaf.
func (e *Engine) RemoveStage(ctx context.Context, treeID, nodeID string) (*domain.Tree, error) {
	return e.sessions.Update(ctx, treeID, func(ctx context.Context, current *domain.Tree) (*domain.Tree, error) {
		return e.builder.RemoveStage(ctx, current, nodeID)
	})
}

// Grow runs a plan against a stored tree, one stage at a time.
// A stage without a target node is applied to every non-empty leaf present when it starts.
func (e *Engine) Grow(ctx context.Context, treeID string, plan []dsl.Stage) (*domain.Tree, error) {
	tree, err := e.sessions.Load(ctx, treeID)
	if err != nil {
		return nil, err
	}
	for i, st := range plan {
		targets := []string{st.Node}
		if st.AllLeaves() {
			targets = targets[:0]
			for _, leaf := range tree.Leaves() {
				if leaf.ItemCount > 0 || leaf.ID == tree.RootID {
					targets = append(targets, leaf.ID)
				}
			}
		}
		for _, nodeID := range targets {
			tree, err = e.AddStage(ctx, treeID, nodeID, st.Config)
			if err != nil {
				return nil, fmt.Errorf("stage %d on node %q: %w", i, nodeID, err)
			}
		}
	}
	return tree, nil
}

// BuildTree creates a tree from range stages in one pass: every stage's groups are
// fetched once, then each level is intersected with the level above.
// Empty intersections are pruned.
func (e *Engine) BuildTree(ctx context.Context, treeID string, stages []domain.StageConfig) (*domain.Tree, error) {
	if treeID == "" {
		treeID = uuid.NewString()
	}
	ids, err := e.provider.Population(ctx, e.filter)
	if err != nil {
		return nil, &domain.ProviderError{Err: fmt.Errorf("population: %w", err)}
	}
	groups, err := e.builder.FetchStages(ctx, stages)
	if err != nil {
		return nil, err
	}
	tree := e.builder.BuildFromStages(ctx, treeID, domain.NewItemSet(ids...), groups)
	if err := e.sessions.Create(ctx, tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// Flows projects the leaves of source onto the leaves of target.
func (e *Engine) Flows(ctx context.Context, sourceID, targetID string) ([]domain.AlluvialFlow, error) {
	source, err := e.sessions.Load(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	target, err := e.sessions.Load(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	return alluvial.Project(source, target), nil
}

// SummarizeFlows totals flows by whether their ends share a category.
func SummarizeFlows(flows []domain.AlluvialFlow) FlowSummary {
	return alluvial.Summarize(flows)
}

// Flatten returns the node/link view of a stored tree.
func (e *Engine) Flatten(ctx context.Context, treeID string) (*domain.FlatTree, error) {
	tree, err := e.sessions.Load(ctx, treeID)
	if err != nil {
		return nil, err
	}
	return tree.Flatten(), nil
}

// DeleteTree removes a stored tree.
func (e *Engine) DeleteTree(ctx context.Context, treeID string) error {
	return e.sessions.Delete(ctx, treeID)
}

// ListTrees returns the IDs of the stored trees.
func (e *Engine) ListTrees(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Builder exposes the underlying builder for callers that plan outside the engine.
func (e *Engine) Builder() *runtime.Builder {
	return e.builder
}
