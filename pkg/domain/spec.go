package domain

// SplitType selects the generator that turns a SplitSpec into a SplitRule.
type SplitType string

const (
	// SplitRange: Metric + ascending Thresholds -> Range rule.
	SplitRange SplitType = "range"
	// SplitFlexible: Metrics + one threshold each -> Pattern rule over all 2^N combinations.
	SplitFlexible SplitType = "flexible"
	// SplitCategoryGroups: Groups of column ids over Metrics/Thresholds -> Expression rule.
	SplitCategoryGroups SplitType = "category_groups"
	// SplitPercentile: Metric + NumBins (or Percentiles) over the node population -> Expression rule.
	SplitPercentile SplitType = "percentile"
	// SplitAbsolute: Metric + NumBins equal-width value bins over [0,1] -> Expression rule.
	SplitAbsolute SplitType = "absolute"
	// SplitCustom: Metric + strictly increasing Thresholds within [0,1] -> Expression rule.
	SplitCustom SplitType = "custom"
	// SplitOverlapping: possibly overlapping Groups with conditions -> mutually exclusive Expression rule.
	SplitOverlapping SplitType = "overlapping"
	// SplitExpression: hand-written Branches with condition strings and a Default -> Expression rule.
	SplitExpression SplitType = "expression"
)

// GroupSpec is one user-defined group of a category-group or overlapping split.
type GroupSpec struct {
	ID string `json:"id" yaml:"id" mapstructure:"id"`
	// ColumnIDs encode high/low combinations, e.g. "all_2_high" or "1_of_2_high_fuzz".
	ColumnIDs []string `json:"column_ids,omitempty" yaml:"column_ids,omitempty" mapstructure:"column_ids"`
	// Condition is used by overlapping splits.
	Condition   string `json:"condition,omitempty" yaml:"condition,omitempty" mapstructure:"condition"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// BranchSpec is one hand-written branch of an expression split.
type BranchSpec struct {
	ID          string `json:"id" yaml:"id" mapstructure:"id"`
	Condition   string `json:"condition" yaml:"condition" mapstructure:"condition"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// SplitSpec is the declarative description of a classification stage.
// Only the fields relevant to Type are read.
type SplitSpec struct {
	Type        SplitType    `json:"type" yaml:"type" mapstructure:"type"`
	Metric      string       `json:"metric,omitempty" yaml:"metric,omitempty" mapstructure:"metric"`
	Metrics     []string     `json:"metrics,omitempty" yaml:"metrics,omitempty" mapstructure:"metrics"`
	Thresholds  []float64    `json:"thresholds,omitempty" yaml:"thresholds,omitempty" mapstructure:"thresholds"`
	NumBins     int          `json:"num_bins,omitempty" yaml:"num_bins,omitempty" mapstructure:"num_bins"`
	Percentiles []float64    `json:"percentiles,omitempty" yaml:"percentiles,omitempty" mapstructure:"percentiles"`
	Groups      []GroupSpec  `json:"groups,omitempty" yaml:"groups,omitempty" mapstructure:"groups"`
	Branches    []BranchSpec `json:"branches,omitempty" yaml:"branches,omitempty" mapstructure:"branches"`
	Default     string       `json:"default,omitempty" yaml:"default,omitempty" mapstructure:"default"`
}

// Clone returns a deep copy of the spec.
func (s SplitSpec) Clone() SplitSpec {
	out := s
	out.Metrics = append([]string(nil), s.Metrics...)
	out.Thresholds = append([]float64(nil), s.Thresholds...)
	out.Percentiles = append([]float64(nil), s.Percentiles...)
	out.Branches = append([]BranchSpec(nil), s.Branches...)
	if s.Groups != nil {
		out.Groups = make([]GroupSpec, len(s.Groups))
		for i, g := range s.Groups {
			g.ColumnIDs = append([]string(nil), g.ColumnIDs...)
			out.Groups[i] = g
		}
	}
	return out
}

// StageConfig is the request to expand a node with a new classification stage.
type StageConfig struct {
	// Category is the display tag given to every child created by the stage.
	Category string    `json:"category,omitempty" yaml:"category,omitempty" mapstructure:"category"`
	Split    SplitSpec `json:"split" yaml:"split" mapstructure:"split"`
}
