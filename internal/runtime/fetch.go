package runtime

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/expr"
)

// metricBins holds the provider's answer for one metric: k ascending cut points and
// the k+1 item sets between them.
type metricBins struct {
	metric string
	cuts   []float64
	sets   []domain.ItemSet
}

// below returns the items whose value is below cut i.
func (m *metricBins) below(i int) domain.ItemSet {
	return domain.Union(m.sets[:i+1]...)
}

// atOrAbove returns the items whose value is at or above cut i.
func (m *metricBins) atOrAbove(i int) domain.ItemSet {
	return domain.Union(m.sets[i+1:]...)
}

func (m *metricBins) all() domain.ItemSet {
	return domain.Union(m.sets...)
}

func (m *metricBins) cutIndex(v float64) (int, bool) {
	i := sort.SearchFloat64s(m.cuts, v)
	if i < len(m.cuts) && m.cuts[i] == v {
		return i, true
	}
	return 0, false
}

// groupIndex is every metricBins fetched for one rule.
type groupIndex map[string]*metricBins

// cutsFor collects, per metric, the distinct ascending cut points a rule needs.
// Comparisons are canonicalized first so that every cut is a ">=" or "<" boundary.
func cutsFor(rule *domain.SplitRule) map[string][]float64 {
	if rule.Type == domain.RuleRange {
		// Range thresholds are forwarded as given; bin i maps to child i.
		return map[string][]float64{rule.Range.Metric: append([]float64(nil), rule.Range.Thresholds...)}
	}
	raw := make(map[string][]float64)
	switch rule.Type {
	case domain.RulePattern:
		for metric, t := range rule.Pattern.Conditions {
			raw[metric] = append(raw[metric], t)
		}
	case domain.RuleExpression:
		for _, b := range rule.Expression.Branches {
			for _, c := range expr.Comparisons(b.Condition) {
				c = expr.Canonical(c)
				raw[c.Metric] = append(raw[c.Metric], c.Value)
			}
		}
	}
	out := make(map[string][]float64, len(raw))
	for metric, vs := range raw {
		sort.Float64s(vs)
		uniq := vs[:0:0]
		for i, v := range vs {
			if i == 0 || v != vs[i-1] {
				uniq = append(uniq, v)
			}
		}
		out[metric] = uniq
	}
	return out
}

// fetchGroups issues one provider request per metric, one at a time, in metric order.
func (b *Builder) fetchGroups(ctx context.Context, nodeID string, cuts map[string][]float64) (groupIndex, error) {
	metrics := make([]string, 0, len(cuts))
	for m := range cuts {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	idx := make(groupIndex, len(metrics))
	for _, metric := range metrics {
		bins, err := b.fetchMetric(ctx, nodeID, metric, cuts[metric])
		if err != nil {
			return nil, err
		}
		idx[metric] = bins
	}
	return idx, nil
}

func (b *Builder) fetchMetric(ctx context.Context, nodeID, metric string, cuts []float64) (*metricBins, error) {
	req := domain.GroupRequest{Filter: b.filter, Metric: metric, Thresholds: cuts}

	start := time.Now()
	groups, err := b.provider.Groups(ctx, req)
	b.emitFetch(ctx, metric, len(cuts), len(groups), time.Since(start), err)
	if err != nil {
		return nil, &domain.ProviderError{Metric: metric, Err: err}
	}

	sets, err := b.groupSets(ctx, nodeID, metric, len(cuts)+1, groups)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("fetched metric groups", "node_id", nodeID, "metric", metric, "thresholds", len(cuts), "groups", len(groups))
	return &metricBins{metric: metric, cuts: cuts, sets: sets}, nil
}

// groupSets orders the provider's groups by index and turns each into an ItemSet.
func (b *Builder) groupSets(ctx context.Context, nodeID, metric string, want int, groups []domain.MetricGroup) ([]domain.ItemSet, error) {
	if len(groups) != want {
		return nil, &domain.ProviderError{Metric: metric, Err: fmt.Errorf("expected %d groups, got %d", want, len(groups))}
	}
	sets := make([]domain.ItemSet, want)
	for _, g := range groups {
		if g.Index < 0 || g.Index >= want || sets[g.Index] != nil {
			return nil, &domain.ProviderError{Metric: metric, Err: fmt.Errorf("invalid or repeated group index %d", g.Index)}
		}
		sets[g.Index] = b.memberSet(ctx, nodeID, metric, g)
	}
	return sets, nil
}

// memberSet flattens a group's members, deduplicating per-source lists, and cross-checks
// the reported count. Mismatches are logged; the computed set wins.
func (b *Builder) memberSet(ctx context.Context, nodeID, metric string, g domain.MetricGroup) domain.ItemSet {
	set, listed := FlattenMembers(g)
	if listed != set.Len() {
		b.warn(ctx, domain.IntegrityDuplicateMembers, nodeID, metric, listed, set.Len())
	}
	if g.Count != set.Len() {
		b.warn(ctx, domain.IntegrityCountMismatch, nodeID, metric, g.Count, set.Len())
	}
	return set
}

// FlattenMembers merges MemberIDs and every per-source list of g into one set.
// It also returns how many IDs were listed in total, before deduplication.
func FlattenMembers(g domain.MetricGroup) (domain.ItemSet, int) {
	listed := len(g.MemberIDs)
	set := domain.NewItemSet(g.MemberIDs...)
	sources := make([]string, 0, len(g.SourceMemberIDs))
	for src := range g.SourceMemberIDs {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		ids := g.SourceMemberIDs[src]
		listed += len(ids)
		for _, id := range ids {
			set.Add(id)
		}
	}
	return set, listed
}
