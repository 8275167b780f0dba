package runtime

import (
	"context"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/rules"
)

// Plan is a fully computed mutation of one node, not yet committed to a tree.
// It captures the node's generation so Apply can reject it once superseded.
type Plan struct {
	Kind       domain.EventType
	NodeID     string
	Generation uint64
	Spec       domain.StageConfig
	Rule       *domain.SplitRule
	Children   []*domain.Node
	Bridge     *domain.ThresholdBridge
	// RootItems is set when an unpopulated root takes its population from the fetched groups.
	RootItems domain.ItemSet

	items domain.ItemSet
}

// PlanStage computes the children nodeID would get from cfg without touching tree.
func (b *Builder) PlanStage(ctx context.Context, tree *domain.Tree, nodeID string, cfg domain.StageConfig) (*Plan, error) {
	node, err := tree.Node(nodeID)
	if err != nil {
		return nil, err
	}
	if !node.IsLeaf() {
		return nil, &domain.InvalidStateError{NodeID: nodeID, Reason: "node is already expanded"}
	}
	return b.plan(ctx, tree, node, domain.EventStageAdded, cfg)
}

// PlanThresholds computes the regenerated children of nodeID under new threshold values.
func (b *Builder) PlanThresholds(ctx context.Context, tree *domain.Tree, nodeID string, values []float64) (*Plan, error) {
	node, err := tree.Node(nodeID)
	if err != nil {
		return nil, err
	}
	if err := b.checkState(tree, node, domain.EventThresholdsUpdated); err != nil {
		return nil, err
	}
	if node.Spec == nil {
		return nil, &domain.InvalidStateError{NodeID: nodeID, Reason: "node has no stored stage configuration"}
	}
	split, err := rules.WithValues(node.Spec.Split, values)
	if err != nil {
		return nil, err
	}
	cfg := domain.StageConfig{Category: node.Spec.Category, Split: split}
	return b.plan(ctx, tree, node, domain.EventThresholdsUpdated, cfg)
}

func (b *Builder) plan(ctx context.Context, tree *domain.Tree, node *domain.Node, kind domain.EventType, cfg domain.StageConfig) (*Plan, error) {
	populations := make(map[string][]float64)
	var population []float64
	if rules.NeedsPopulation(cfg.Split) {
		pop, err := b.population(ctx, cfg.Split.Metric, node.ItemIDs)
		if err != nil {
			return nil, err
		}
		populations[cfg.Split.Metric] = pop
		population = pop
	}

	res, err := rules.Resolve(node.ID, cfg.Split, population)
	if err != nil {
		return nil, err
	}
	if err := checkChildIDs(tree, node, res.ChildIDs); err != nil {
		return nil, err
	}

	cuts := cutsFor(res.Rule)
	idx, err := b.fetchGroups(ctx, node.ID, cuts)
	if err != nil {
		return nil, err
	}

	universe := node.ItemIDs
	var rootItems domain.ItemSet
	if node.ID == tree.RootID && universe.Len() == 0 {
		parts := make([]domain.ItemSet, 0, len(idx))
		for _, bins := range idx {
			parts = append(parts, bins.all())
		}
		universe = domain.Union(parts...)
		rootItems = universe
	}

	ev := &evaluator{idx: idx, universe: universe}
	sets, err := b.childSets(ctx, node.ID, res.Rule, ev)
	if err != nil {
		return nil, err
	}

	children := make([]*domain.Node, 0, len(res.ChildIDs))
	for _, id := range res.ChildIDs {
		index, condition := res.Rule.Describe(id)
		path := append(append([]domain.PathDescriptor(nil), node.ParentPath...), domain.PathDescriptor{
			ParentID:    node.ID,
			RuleType:    res.Rule.Type,
			BranchIndex: index,
			Condition:   condition,
		})
		child := &domain.Node{
			ID:         id,
			Stage:      node.Stage + 1,
			Category:   cfg.Category,
			ParentID:   node.ID,
			ParentPath: path,
		}
		child.SetItems(sets[id])
		children = append(children, child)
	}

	p := &Plan{
		Kind:       kind,
		NodeID:     node.ID,
		Generation: node.Generation,
		Spec:       cfg,
		Rule:       res.Rule,
		Children:   children,
		RootItems:  rootItems,
		items:      node.ItemIDs.Clone(),
	}

	if res.Metric != "" && b.values != nil {
		pop, ok := populations[res.Metric]
		if !ok {
			if pop, err = b.population(ctx, res.Metric, universe); err != nil {
				return nil, err
			}
		}
		thresholds := res.Cuts
		if len(thresholds) == 0 {
			thresholds = cuts[res.Metric]
		}
		p.Bridge = ComputeBridge(res.Metric, thresholds, pop)
	}
	return p, nil
}
