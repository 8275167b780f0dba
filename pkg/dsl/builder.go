package dsl

import (
	"fmt"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/rules"
)

// Stage is one step of a plan. An empty Node applies the stage to every current leaf.
type Stage struct {
	Node   string             `json:"node,omitempty" yaml:"node,omitempty" mapstructure:"node"`
	Config domain.StageConfig `json:"config" yaml:"config" mapstructure:",squash"`
}

// AllLeaves reports whether the stage targets every current leaf.
func (s Stage) AllLeaves() bool {
	return s.Node == ""
}

// validationNode stands in for the real target when a stage is checked before it runs.
const validationNode = "plan"

// validationPopulation lets percentile stages be checked without real values.
var validationPopulation = []float64{0, 0.5, 1}

// Builder accumulates the stages of a plan.
type Builder struct {
	stages []*StageBuilder
}

// New creates a new plan builder.
func New() *Builder {
	return &Builder{}
}

// Node starts a stage targeting a single node.
func (b *Builder) Node(id string) *StageBuilder {
	sb := &StageBuilder{stage: Stage{Node: id}, builder: b}
	b.stages = append(b.stages, sb)
	return sb
}

// Leaves starts a stage applied to every leaf present when it runs.
func (b *Builder) Leaves() *StageBuilder {
	return b.Node("")
}

// Add appends a pre-built stage.
func (b *Builder) Add(stage Stage) *Builder {
	b.stages = append(b.stages, &StageBuilder{stage: stage, builder: b})
	return b
}

// Build validates every stage and returns the plan in order.
// All invalid stages are reported together.
func (b *Builder) Build() ([]Stage, error) {
	out := make([]Stage, 0, len(b.stages))
	var errs []error
	for i, sb := range b.stages {
		if err := Validate(sb.stage); err != nil {
			errs = append(errs, fmt.Errorf("stage %d: %w", i, err))
			continue
		}
		out = append(out, sb.stage)
	}
	if len(errs) > 0 {
		return nil, &domain.AggregateError{Errors: errs}
	}
	return out, nil
}

// Validate checks that the stage's split resolves to a rule.
func Validate(s Stage) error {
	parent := s.Node
	if parent == "" {
		parent = validationNode
	}
	var population []float64
	if rules.NeedsPopulation(s.Config.Split) {
		population = validationPopulation
	}
	_, err := rules.Resolve(parent, s.Config.Split, population)
	return err
}
