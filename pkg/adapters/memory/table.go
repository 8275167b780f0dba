package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/rules"
)

// Item is one row of a metric table.
type Item struct {
	ID      int                `json:"id" yaml:"id"`
	Source  string             `json:"source,omitempty" yaml:"source,omitempty"`
	Metrics map[string]float64 `json:"metrics" yaml:"metrics"`
}

// Table is an in-memory metric table. It implements both ports.MetricGroupProvider
// and ports.MetricValueSource. Safe for concurrent use.
type Table struct {
	mu    sync.RWMutex
	items map[int]Item
}

// NewTable creates a table from the given rows. Later rows replace earlier ones with the same ID.
func NewTable(items ...Item) *Table {
	t := &Table{items: make(map[int]Item, len(items))}
	for _, it := range items {
		t.Put(it)
	}
	return t
}

// Put inserts or replaces a row.
func (t *Table) Put(it Item) {
	m := make(map[string]float64, len(it.Metrics))
	for k, v := range it.Metrics {
		m[k] = v
	}
	it.Metrics = m

	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[it.ID] = it
}

// Len returns the number of rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// Metrics returns every metric name present in the table, sorted.
func (t *Table) Metrics() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := make(map[string]bool)
	for _, it := range t.items {
		for m := range it.Metrics {
			seen[m] = true
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// selected returns the rows matching filter in ascending ID order. Caller holds the lock.
func (t *Table) selected(filter domain.FilterSpec) []Item {
	var allow map[int]bool
	if len(filter.ItemIDs) > 0 {
		allow = make(map[int]bool, len(filter.ItemIDs))
		for _, id := range filter.ItemIDs {
			allow[id] = true
		}
	}
	sources := make(map[string]bool, len(filter.Sources))
	for _, s := range filter.Sources {
		sources[s] = true
	}

	out := make([]Item, 0, len(t.items))
	for id, it := range t.items {
		if allow != nil && !allow[id] {
			continue
		}
		if len(sources) > 0 && !sources[it.Source] {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Groups bins the filtered rows by req.Metric. Rows without the metric are left out.
// When the filter names sources, members are reported per source.
func (t *Table) Groups(ctx context.Context, req domain.GroupRequest) ([]domain.MetricGroup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Metric == "" {
		return nil, fmt.Errorf("metric is required")
	}
	for i := 1; i < len(req.Thresholds); i++ {
		if req.Thresholds[i] < req.Thresholds[i-1] {
			return nil, fmt.Errorf("thresholds must be ascending: %v", req.Thresholds)
		}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	groups := make([]domain.MetricGroup, len(req.Thresholds)+1)
	for i := range groups {
		groups[i] = domain.MetricGroup{
			Index:     i,
			Label:     domain.RangeBinLabel(req.Metric, req.Thresholds, i),
			MemberIDs: []int{},
		}
	}
	bySource := len(req.Filter.Sources) > 0
	for _, it := range t.selected(req.Filter) {
		v, ok := it.Metrics[req.Metric]
		if !ok {
			continue
		}
		g := &groups[rules.RangeBin(req.Thresholds, v)]
		if bySource {
			if g.SourceMemberIDs == nil {
				g.SourceMemberIDs = make(map[string][]int)
			}
			g.SourceMemberIDs[it.Source] = append(g.SourceMemberIDs[it.Source], it.ID)
		} else {
			g.MemberIDs = append(g.MemberIDs, it.ID)
		}
		g.Count++
	}
	return groups, nil
}

// Population returns the IDs of every row matching filter.
func (t *Table) Population(ctx context.Context, filter domain.FilterSpec) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows := t.selected(filter)
	ids := make([]int, len(rows))
	for i, it := range rows {
		ids[i] = it.ID
	}
	return ids, nil
}

// Values returns the value of metric for each of ids that has one.
func (t *Table) Values(ctx context.Context, metric string, ids []int) (map[int]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[int]float64, len(ids))
	for _, id := range ids {
		if it, ok := t.items[id]; ok {
			if v, ok := it.Metrics[metric]; ok {
				out[id] = v
			}
		}
	}
	return out, nil
}

// Replace swaps the rows of t for the rows of src in one step.
func (t *Table) Replace(src *Table) {
	src.mu.RLock()
	items := make(map[int]Item, len(src.items))
	for id, it := range src.items {
		items[id] = it
	}
	src.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = items
}
