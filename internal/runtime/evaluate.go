package runtime

import (
	"context"
	"fmt"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/expr"
)

// evaluator resolves a rule's branches to item sets within one node's universe.
type evaluator struct {
	idx      groupIndex
	universe domain.ItemSet
}

// comparison answers a single comparison from the fetched bins.
func (ev *evaluator) comparison(c expr.Comparison) (domain.ItemSet, error) {
	c = expr.Canonical(c)
	bins, ok := ev.idx[c.Metric]
	if !ok {
		return nil, fmt.Errorf("no groups fetched for metric %q", c.Metric)
	}
	i, ok := bins.cutIndex(c.Value)
	if !ok {
		return nil, fmt.Errorf("no cut at %v for metric %q", c.Value, c.Metric)
	}
	if c.Op == expr.OpGE {
		return bins.atOrAbove(i), nil
	}
	return bins.below(i), nil
}

// eval computes the items of the universe satisfying e.
// Items without a value for a compared metric never satisfy that comparison.
func (ev *evaluator) eval(e expr.Expr) (domain.ItemSet, error) {
	switch n := e.(type) {
	case expr.Comparison:
		s, err := ev.comparison(n)
		if err != nil {
			return nil, err
		}
		return domain.Intersect(s, ev.universe), nil
	case expr.And:
		acc := ev.universe
		for _, t := range n.Terms {
			s, err := ev.eval(t)
			if err != nil {
				return nil, err
			}
			acc = domain.Intersect(acc, s)
		}
		return acc, nil
	case expr.Or:
		parts := make([]domain.ItemSet, 0, len(n.Terms))
		for _, t := range n.Terms {
			s, err := ev.eval(t)
			if err != nil {
				return nil, err
			}
			parts = append(parts, s)
		}
		return domain.Union(parts...), nil
	case expr.Not:
		s, err := ev.eval(n.Term)
		if err != nil {
			return nil, err
		}
		return domain.Difference(ev.universe, s), nil
	}
	return nil, fmt.Errorf("unsupported condition %T", e)
}

// pattern computes the items of the universe matching every level of entry.
func (ev *evaluator) pattern(rule *domain.PatternRule, entry domain.PatternEntry) (domain.ItemSet, error) {
	terms := make([]expr.Expr, 0, len(entry.Match))
	for _, metric := range rule.Metrics {
		level, ok := entry.Match[metric]
		if !ok {
			continue
		}
		t := rule.Conditions[metric]
		if level == domain.High {
			terms = append(terms, expr.High(metric, t))
		} else {
			terms = append(terms, expr.Low(metric, t))
		}
	}
	if len(terms) == 0 {
		return ev.universe.Clone(), nil
	}
	return ev.eval(expr.AllOf(terms...))
}

// childSets maps every declared child of rule to its items.
// Pattern and expression branches claim items first-match-wins; the default child takes
// the rest. Items left unclaimed by a rule without a default are reported and dropped.
func (b *Builder) childSets(ctx context.Context, nodeID string, rule *domain.SplitRule, ev *evaluator) (map[string]domain.ItemSet, error) {
	out := make(map[string]domain.ItemSet)
	for _, id := range rule.ChildIDs() {
		out[id] = domain.NewItemSet()
	}

	switch rule.Type {
	case domain.RuleRange:
		bins := ev.idx[rule.Range.Metric]
		if bins == nil || len(bins.sets) != len(rule.Range.ChildIDs) {
			return nil, fmt.Errorf("range rule on %q does not match fetched groups", rule.Range.Metric)
		}
		for i, id := range rule.Range.ChildIDs {
			if id == "" {
				continue
			}
			out[id] = b.intersect(ctx, nodeID, rule.Range.Metric, bins.sets[i], ev.universe)
		}
		return out, nil

	case domain.RulePattern:
		claimed := domain.NewItemSet()
		for _, p := range rule.Pattern.Patterns {
			s, err := ev.pattern(rule.Pattern, p)
			if err != nil {
				return nil, err
			}
			claim(out, p.ChildID, s, claimed)
		}
		b.fillDefault(ctx, nodeID, out, rule.Pattern.DefaultChildID, ev.universe, claimed)
		return out, nil

	case domain.RuleExpression:
		claimed := domain.NewItemSet()
		for _, br := range rule.Expression.Branches {
			s, err := ev.eval(br.Condition)
			if err != nil {
				return nil, err
			}
			claim(out, br.ChildID, s, claimed)
		}
		b.fillDefault(ctx, nodeID, out, rule.Expression.DefaultChildID, ev.universe, claimed)
		return out, nil
	}
	return nil, fmt.Errorf("unknown rule type %q", rule.Type)
}

// claim moves the not-yet-claimed part of s into child.
func claim(out map[string]domain.ItemSet, child string, s, claimed domain.ItemSet) {
	dst := out[child]
	for id := range s {
		if claimed.Contains(id) {
			continue
		}
		claimed.Add(id)
		dst.Add(id)
	}
}

func (b *Builder) fillDefault(ctx context.Context, nodeID string, out map[string]domain.ItemSet, def string, universe, claimed domain.ItemSet) {
	rest := domain.Difference(universe, claimed)
	if def == "" {
		if rest.Len() > 0 {
			b.warn(ctx, domain.IntegrityDroppedItems, nodeID, "", universe.Len(), claimed.Len())
		}
		return
	}
	dst := out[def]
	for id := range rest {
		dst.Add(id)
	}
}

// intersect returns a ∩ b and reports a result larger than min(|a|, |b|),
// which can only come from a broken set implementation.
func (b *Builder) intersect(ctx context.Context, nodeID, metric string, x, y domain.ItemSet) domain.ItemSet {
	out := domain.Intersect(x, y)
	if limit := min(x.Len(), y.Len()); out.Len() > limit {
		b.warn(ctx, domain.IntegrityOversizedResult, nodeID, metric, limit, out.Len())
	}
	return out
}
