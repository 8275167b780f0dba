package dsl

import "github.com/gnueaj/SAE-vis-sub000/pkg/domain"

// StageBuilder provides a fluent API for configuring one stage.
// The split setters replace each other; the last one called wins.
type StageBuilder struct {
	stage   Stage
	builder *Builder
}

// Category tags every child the stage creates.
func (s *StageBuilder) Category(category string) *StageBuilder {
	s.stage.Config.Category = category
	return s
}

// Range splits on one metric at ascending thresholds.
func (s *StageBuilder) Range(metric string, thresholds ...float64) *StageBuilder {
	s.stage.Config.Split = domain.SplitSpec{Type: domain.SplitRange, Metric: metric, Thresholds: thresholds}
	return s
}

// Flexible splits on every high/low combination of metrics.
func (s *StageBuilder) Flexible(metrics []string, thresholds []float64) *StageBuilder {
	s.stage.Config.Split = domain.SplitSpec{Type: domain.SplitFlexible, Metrics: metrics, Thresholds: thresholds}
	return s
}

// Groups splits into user-defined groups of high/low column ids.
func (s *StageBuilder) Groups(metrics []string, thresholds []float64, groups ...domain.GroupSpec) *StageBuilder {
	s.stage.Config.Split = domain.SplitSpec{Type: domain.SplitCategoryGroups, Metrics: metrics, Thresholds: thresholds, Groups: groups}
	return s
}

// Percentile splits the node population of metric into numBins equal-mass bins.
func (s *StageBuilder) Percentile(metric string, numBins int) *StageBuilder {
	s.stage.Config.Split = domain.SplitSpec{Type: domain.SplitPercentile, Metric: metric, NumBins: numBins}
	return s
}

// PercentileAt splits the node population of metric at the given fractions.
func (s *StageBuilder) PercentileAt(metric string, percentiles ...float64) *StageBuilder {
	s.stage.Config.Split = domain.SplitSpec{Type: domain.SplitPercentile, Metric: metric, Percentiles: percentiles}
	return s
}

// Absolute splits [0,1] into numBins equal-width bins.
func (s *StageBuilder) Absolute(metric string, numBins int) *StageBuilder {
	s.stage.Config.Split = domain.SplitSpec{Type: domain.SplitAbsolute, Metric: metric, NumBins: numBins}
	return s
}

// Custom splits [0,1] at the given thresholds.
func (s *StageBuilder) Custom(metric string, thresholds ...float64) *StageBuilder {
	s.stage.Config.Split = domain.SplitSpec{Type: domain.SplitCustom, Metric: metric, Thresholds: thresholds}
	return s
}

// Overlapping splits into mutually exclusive combinations of possibly overlapping groups.
func (s *StageBuilder) Overlapping(groups ...domain.GroupSpec) *StageBuilder {
	s.stage.Config.Split = domain.SplitSpec{Type: domain.SplitOverlapping, Groups: groups}
	return s
}

// Expression splits by hand-written conditions, first match wins.
func (s *StageBuilder) Expression(def string, branches ...domain.BranchSpec) *StageBuilder {
	s.stage.Config.Split = domain.SplitSpec{Type: domain.SplitExpression, Branches: branches, Default: def}
	return s
}

// Node starts the next stage, targeting a single node.
func (s *StageBuilder) Node(id string) *StageBuilder {
	return s.builder.Node(id)
}

// Leaves starts the next stage, applied to every leaf.
func (s *StageBuilder) Leaves() *StageBuilder {
	return s.builder.Leaves()
}

// Build validates and returns the whole plan.
func (s *StageBuilder) Build() ([]Stage, error) {
	return s.builder.Build()
}
