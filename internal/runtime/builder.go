package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gnueaj/SAE-vis-sub000/internal/logging"
	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/ports"
)

// Builder expands, re-thresholds and collapses classification stages.
// Every mutator treats its input tree as immutable and returns an updated copy;
// on error the input is returned to the caller untouched.
type Builder struct {
	provider ports.MetricGroupProvider
	values   ports.MetricValueSource
	filter   domain.FilterSpec
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) BuilderOption {
	return func(b *Builder) {
		b.hooks = hooks
	}
}

// WithValueSource enables percentile splits and threshold bridges.
func WithValueSource(src ports.MetricValueSource) BuilderOption {
	return func(b *Builder) {
		b.values = src
	}
}

// WithFilter scopes every provider request.
func WithFilter(filter domain.FilterSpec) BuilderOption {
	return func(b *Builder) {
		b.filter = filter
	}
}

// NewBuilder creates a builder backed by the given metric-group provider.
func NewBuilder(provider ports.MetricGroupProvider, opts ...BuilderOption) *Builder {
	b := &Builder{
		provider: provider,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Populate fills the root of an unexpanded tree with the full filtered population.
func (b *Builder) Populate(ctx context.Context, tree *domain.Tree) (*domain.Tree, error) {
	root, err := tree.Node(tree.RootID)
	if err != nil {
		return tree, err
	}
	if !root.IsLeaf() {
		return tree, &domain.InvalidStateError{NodeID: root.ID, Reason: "cannot repopulate an expanded root"}
	}
	ids, err := b.provider.Population(ctx, b.filter)
	if err != nil {
		return tree, &domain.ProviderError{Err: fmt.Errorf("population: %w", err)}
	}

	out := tree.Clone()
	r := out.Root()
	r.SetItems(domain.NewItemSet(ids...))
	r.Generation++
	b.logger.Info("root populated", "tree_id", tree.ID, "items", r.ItemCount)
	return out, nil
}

// AddStage expands a leaf with the stage described by cfg.
func (b *Builder) AddStage(ctx context.Context, tree *domain.Tree, nodeID string, cfg domain.StageConfig) (*domain.Tree, error) {
	plan, err := b.PlanStage(ctx, tree, nodeID, cfg)
	if err != nil {
		return tree, err
	}
	return b.Apply(ctx, tree, plan)
}

// UpdateThresholds regenerates the direct children of nodeID with new threshold values,
// keeping the node's split type. Every current child must be a leaf.
func (b *Builder) UpdateThresholds(ctx context.Context, tree *domain.Tree, nodeID string, values []float64) (*domain.Tree, error) {
	plan, err := b.PlanThresholds(ctx, tree, nodeID, values)
	if err != nil {
		return tree, err
	}
	return b.Apply(ctx, tree, plan)
}

// RemoveStage returns nodeID to the unexpanded state, deleting every descendant.
// Removing the stage of a leaf is a no-op.
func (b *Builder) RemoveStage(ctx context.Context, tree *domain.Tree, nodeID string) (*domain.Tree, error) {
	node, err := tree.Node(nodeID)
	if err != nil {
		return tree, err
	}
	if node.IsLeaf() && len(node.ChildrenIDs) == 0 {
		return tree.Clone(), nil
	}

	out := tree.Clone()
	removed := out.Descendants(nodeID)
	for _, id := range removed {
		delete(out.Nodes, id)
	}
	target := out.Nodes[nodeID]
	var ruleType domain.RuleType
	if target.SplitRule != nil {
		ruleType = target.SplitRule.Type
	}
	target.SplitRule = nil
	target.Spec = nil
	target.Bridge = nil
	target.ChildrenIDs = nil
	target.Generation++

	b.logger.Info("stage removed", "tree_id", tree.ID, "node_id", nodeID, "removed", len(removed))
	b.emitStage(ctx, domain.EventStageRemoved, tree.ID, nodeID, ruleType, len(removed))
	return out, nil
}

// Apply commits a plan to tree. It fails with ErrStaleGeneration when the target node
// was mutated after the plan was made.
func (b *Builder) Apply(ctx context.Context, tree *domain.Tree, plan *Plan) (*domain.Tree, error) {
	node, err := tree.Node(plan.NodeID)
	if err != nil {
		return tree, err
	}
	if node.Generation != plan.Generation || !node.ItemIDs.Equal(plan.items) {
		b.logger.Warn("discarding stale plan", "tree_id", tree.ID, "node_id", plan.NodeID,
			"planned_generation", plan.Generation, "current_generation", node.Generation)
		return tree, fmt.Errorf("node %q: %w", plan.NodeID, domain.ErrStaleGeneration)
	}
	if err := b.checkState(tree, node, plan.Kind); err != nil {
		return tree, err
	}
	ids := make([]string, len(plan.Children))
	for i, c := range plan.Children {
		ids[i] = c.ID
	}
	if err := checkChildIDs(tree, node, ids); err != nil {
		return tree, err
	}

	out := tree.Clone()
	target := out.Nodes[plan.NodeID]
	for _, id := range target.ChildrenIDs {
		delete(out.Nodes, id)
	}
	if plan.RootItems != nil {
		target.SetItems(plan.RootItems.Clone())
	}
	spec := plan.Spec
	spec.Split = plan.Spec.Split.Clone()
	target.Spec = &spec
	target.SplitRule = plan.Rule.Clone()
	target.Bridge = nil
	if plan.Bridge != nil {
		target.Bridge = plan.Bridge.Clone()
	}
	target.ChildrenIDs = make([]string, 0, len(plan.Children))
	target.Generation++
	for _, child := range plan.Children {
		c := child.Clone()
		out.Nodes[c.ID] = c
		target.ChildrenIDs = append(target.ChildrenIDs, c.ID)
	}

	b.logger.Info("stage applied", "tree_id", tree.ID, "node_id", plan.NodeID,
		"kind", plan.Kind, "rule", plan.Rule.Type, "children", len(plan.Children))
	b.emitStage(ctx, plan.Kind, tree.ID, plan.NodeID, plan.Rule.Type, len(plan.Children))
	return out, nil
}

func (b *Builder) checkState(tree *domain.Tree, node *domain.Node, kind domain.EventType) error {
	switch kind {
	case domain.EventStageAdded:
		if !node.IsLeaf() {
			return &domain.InvalidStateError{NodeID: node.ID, Reason: "node is already expanded"}
		}
	case domain.EventThresholdsUpdated:
		if node.IsLeaf() {
			return &domain.InvalidStateError{NodeID: node.ID, Reason: "node has no stage to update"}
		}
		for _, id := range node.ChildrenIDs {
			if child, ok := tree.Nodes[id]; ok && !child.IsLeaf() {
				return &domain.InvalidStateError{NodeID: node.ID, Reason: fmt.Sprintf("child %q is expanded; remove its stage first", id)}
			}
		}
	default:
		return fmt.Errorf("unknown plan kind %q", kind)
	}
	return nil
}

// checkChildIDs rejects child IDs already taken by a node other than one of node's
// current children, which the mutation replaces.
func checkChildIDs(tree *domain.Tree, node *domain.Node, ids []string) error {
	replaced := make(map[string]bool, len(node.ChildrenIDs))
	for _, id := range node.ChildrenIDs {
		replaced[id] = true
	}
	for _, id := range ids {
		if _, taken := tree.Nodes[id]; taken && !replaced[id] {
			return &domain.InvalidStateError{NodeID: node.ID, Reason: fmt.Sprintf("child id %q is already used by another node", id)}
		}
	}
	return nil
}

func (b *Builder) emitStage(ctx context.Context, kind domain.EventType, treeID, nodeID string, rule domain.RuleType, children int) {
	var hook func(context.Context, *domain.StageEvent)
	switch kind {
	case domain.EventStageAdded:
		hook = b.hooks.OnStageAdded
	case domain.EventStageRemoved:
		hook = b.hooks.OnStageRemoved
	case domain.EventThresholdsUpdated:
		hook = b.hooks.OnThresholdsUpdated
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.StageEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: kind},
		TreeID:    treeID,
		NodeID:    nodeID,
		RuleType:  rule,
		Children:  children,
	})
}

func (b *Builder) emitFetch(ctx context.Context, metric string, thresholds, groups int, d time.Duration, err error) {
	if err != nil {
		b.logger.Error("metric group fetch failed", "metric", metric, "error", err)
	}
	if b.hooks.OnFetch == nil {
		return
	}
	b.hooks.OnFetch(ctx, &domain.FetchEvent{
		EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventFetch},
		Metric:     metric,
		Thresholds: thresholds,
		Groups:     groups,
		Duration:   d,
		Err:        err,
	})
}

// warn logs a non-fatal integrity problem and forwards it to the hooks.
func (b *Builder) warn(ctx context.Context, kind domain.IntegrityKind, nodeID, metric string, reported, computed int) {
	b.logger.Warn("integrity warning", "kind", kind, "node_id", nodeID, "metric", metric,
		"reported", reported, "computed", computed)
	if b.hooks.OnIntegrityWarning == nil {
		return
	}
	b.hooks.OnIntegrityWarning(ctx, &domain.IntegrityEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventIntegrityWarning},
		Kind:      kind,
		NodeID:    nodeID,
		Metric:    metric,
		Reported:  reported,
		Computed:  computed,
	})
}
