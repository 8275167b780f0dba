package domain

// FilterSpec scopes a provider request. The zero value selects the whole population.
type FilterSpec struct {
	ItemIDs []int    `json:"item_ids,omitempty" yaml:"item_ids,omitempty" mapstructure:"item_ids"`
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty" mapstructure:"sources"`
}

// IsZero reports whether the filter selects everything.
func (f FilterSpec) IsZero() bool {
	return len(f.ItemIDs) == 0 && len(f.Sources) == 0
}

// GroupRequest asks a provider to bin items by one metric.
// k thresholds yield k+1 groups ordered by index.
type GroupRequest struct {
	Filter     FilterSpec `json:"filters"`
	Metric     string     `json:"metric"`
	Thresholds []float64  `json:"thresholds"`
}

// MetricGroup is one bin returned by a provider.
// Members arrive either as MemberIDs or split per data source in SourceMemberIDs.
type MetricGroup struct {
	Index           int              `json:"group_index"`
	Label           string           `json:"range_label,omitempty"`
	MemberIDs       []int            `json:"feature_ids,omitempty"`
	SourceMemberIDs map[string][]int `json:"feature_ids_by_source,omitempty"`
	Count           int              `json:"feature_count"`
}
