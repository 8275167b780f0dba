package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/gnueaj/SAE-vis-sub000/internal/logging"
	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/ports"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the default number of cached responses per kind.
const DefaultSize = 256

// ErrNoValueSource is returned by Values when the wrapped provider exposes no raw values.
var ErrNoValueSource = errors.New("wrapped provider has no value source")

// Stats reports cache effectiveness.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// Provider decorates a MetricGroupProvider (and optionally a MetricValueSource)
// with LRU caches. Cached responses are copied on the way out so callers
// cannot corrupt them.
type Provider struct {
	inner  ports.MetricGroupProvider
	values ports.MetricValueSource
	logger *slog.Logger

	groups     *lru.Cache[string, []domain.MetricGroup]
	population *lru.Cache[string, []int]
	valueCache *lru.Cache[string, map[int]float64]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// Option configures a Provider.
type Option func(*options)

type options struct {
	size   int
	values ports.MetricValueSource
	logger *slog.Logger
}

// WithSize sets the per-kind capacity. Non-positive sizes are ignored.
func WithSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.size = n
		}
	}
}

// WithValueSource overrides the value source. By default the wrapped provider is
// used when it also implements ports.MetricValueSource.
func WithValueSource(v ports.MetricValueSource) Option {
	return func(o *options) {
		o.values = v
	}
}

// WithLogger sets the logger used to trace cache misses.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New wraps inner.
func New(inner ports.MetricGroupProvider, opts ...Option) (*Provider, error) {
	o := options{size: DefaultSize, logger: logging.NewNop()}
	if v, ok := inner.(ports.MetricValueSource); ok {
		o.values = v
	}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Provider{inner: inner, values: o.values, logger: o.logger}

	var err error
	if p.groups, err = lru.NewWithEvict[string, []domain.MetricGroup](o.size, evictHook[[]domain.MetricGroup](p)); err != nil {
		return nil, fmt.Errorf("failed to create group cache: %w", err)
	}
	if p.population, err = lru.NewWithEvict[string, []int](o.size, evictHook[[]int](p)); err != nil {
		return nil, fmt.Errorf("failed to create population cache: %w", err)
	}
	if p.valueCache, err = lru.NewWithEvict[string, map[int]float64](o.size, evictHook[map[int]float64](p)); err != nil {
		return nil, fmt.Errorf("failed to create value cache: %w", err)
	}
	return p, nil
}

func evictHook[V any](p *Provider) func(string, V) {
	return func(string, V) {
		p.evictions.Add(1)
	}
}

// Groups implements ports.MetricGroupProvider.
func (p *Provider) Groups(ctx context.Context, req domain.GroupRequest) ([]domain.MetricGroup, error) {
	key := groupKey(req)
	if cached, ok := p.groups.Get(key); ok {
		p.hits.Add(1)
		return cloneGroups(cached), nil
	}
	p.misses.Add(1)
	p.logger.Debug("group cache miss", "metric", req.Metric, "thresholds", len(req.Thresholds))

	groups, err := p.inner.Groups(ctx, req)
	if err != nil {
		return nil, err
	}
	p.groups.Add(key, cloneGroups(groups))
	return groups, nil
}

// Population implements ports.MetricGroupProvider.
func (p *Provider) Population(ctx context.Context, filter domain.FilterSpec) ([]int, error) {
	key := filterKey(filter)
	if cached, ok := p.population.Get(key); ok {
		p.hits.Add(1)
		return append([]int(nil), cached...), nil
	}
	p.misses.Add(1)

	ids, err := p.inner.Population(ctx, filter)
	if err != nil {
		return nil, err
	}
	p.population.Add(key, append([]int(nil), ids...))
	return ids, nil
}

// Values implements ports.MetricValueSource.
func (p *Provider) Values(ctx context.Context, metric string, ids []int) (map[int]float64, error) {
	if p.values == nil {
		return nil, ErrNoValueSource
	}
	key := metric + "|" + idsKey(ids)
	if cached, ok := p.valueCache.Get(key); ok {
		p.hits.Add(1)
		return cloneValues(cached), nil
	}
	p.misses.Add(1)

	vals, err := p.values.Values(ctx, metric, ids)
	if err != nil {
		return nil, err
	}
	p.valueCache.Add(key, cloneValues(vals))
	return vals, nil
}

// Stats returns a snapshot of the cache counters.
func (p *Provider) Stats() Stats {
	return Stats{
		Hits:      p.hits.Load(),
		Misses:    p.misses.Load(),
		Evictions: p.evictions.Load(),
	}
}

// Purge drops every cached response, e.g. after the underlying data changed.
func (p *Provider) Purge() {
	p.groups.Purge()
	p.population.Purge()
	p.valueCache.Purge()
}

func groupKey(req domain.GroupRequest) string {
	var b strings.Builder
	b.WriteString(req.Metric)
	for _, t := range req.Thresholds {
		fmt.Fprintf(&b, "|%x", math.Float64bits(t))
	}
	b.WriteString("#")
	b.WriteString(filterKey(req.Filter))
	return b.String()
}

func filterKey(f domain.FilterSpec) string {
	sources := append([]string(nil), f.Sources...)
	sort.Strings(sources)
	return strings.Join(sources, ",") + "#" + idsKey(f.ItemIDs)
}

// idsKey fingerprints an ID list independent of its order.
func idsKey(ids []int) string {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)
	h := fnv.New64a()
	var buf [8]byte
	for _, id := range sorted {
		binary.LittleEndian.PutUint64(buf[:], uint64(id))
		_, _ = h.Write(buf[:])
	}
	return fmt.Sprintf("%d:%x", len(sorted), h.Sum64())
}

func cloneGroups(in []domain.MetricGroup) []domain.MetricGroup {
	out := make([]domain.MetricGroup, len(in))
	for i, g := range in {
		out[i] = g
		if g.MemberIDs != nil {
			out[i].MemberIDs = append(make([]int, 0, len(g.MemberIDs)), g.MemberIDs...)
		}
		if g.SourceMemberIDs != nil {
			out[i].SourceMemberIDs = make(map[string][]int, len(g.SourceMemberIDs))
			for src, ids := range g.SourceMemberIDs {
				out[i].SourceMemberIDs[src] = append([]int(nil), ids...)
			}
		}
	}
	return out
}

func cloneValues(in map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
