package expr

import (
	"strconv"
	"strings"
)

// Op is a comparison operator.
type Op string

const (
	OpGE Op = ">="
	OpGT Op = ">"
	OpLE Op = "<="
	OpLT Op = "<"
)

// Expr is a node of the condition AST.
type Expr interface {
	// String renders the display form of the condition.
	String() string
	// Eval evaluates the condition against a metric map.
	// A comparison on a metric missing from values is false.
	Eval(values map[string]float64) bool

	isExpr()
}

// Comparison compares one metric against a constant.
type Comparison struct {
	Metric string  `json:"metric"`
	Op     Op      `json:"op"`
	Value  float64 `json:"value"`
}

// And is true when every term is true.
type And struct {
	Terms []Expr
}

// Or is true when any term is true.
type Or struct {
	Terms []Expr
}

// Not negates its term.
type Not struct {
	Term Expr
}

func (Comparison) isExpr() {}
func (And) isExpr()        {}
func (Or) isExpr()         {}
func (Not) isExpr()        {}

// High is the "metric at or above threshold" comparison.
func High(metric string, threshold float64) Comparison {
	return Comparison{Metric: metric, Op: OpGE, Value: threshold}
}

// Low is the "metric below threshold" comparison.
func Low(metric string, threshold float64) Comparison {
	return Comparison{Metric: metric, Op: OpLT, Value: threshold}
}

// AllOf joins terms with And. A single term is returned unwrapped.
func AllOf(terms ...Expr) Expr {
	if len(terms) == 1 {
		return terms[0]
	}
	return And{Terms: terms}
}

// AnyOf joins terms with Or. A single term is returned unwrapped.
func AnyOf(terms ...Expr) Expr {
	if len(terms) == 1 {
		return terms[0]
	}
	return Or{Terms: terms}
}

// Holds reports whether v satisfies the comparison operator against the value.
func (c Comparison) Holds(v float64) bool {
	switch c.Op {
	case OpGE:
		return v >= c.Value
	case OpGT:
		return v > c.Value
	case OpLE:
		return v <= c.Value
	case OpLT:
		return v < c.Value
	}
	return false
}

func (c Comparison) Eval(values map[string]float64) bool {
	v, ok := values[c.Metric]
	if !ok {
		return false
	}
	return c.Holds(v)
}

func (a And) Eval(values map[string]float64) bool {
	for _, t := range a.Terms {
		if !t.Eval(values) {
			return false
		}
	}
	return true
}

func (o Or) Eval(values map[string]float64) bool {
	for _, t := range o.Terms {
		if t.Eval(values) {
			return true
		}
	}
	return false
}

func (n Not) Eval(values map[string]float64) bool {
	return !n.Term.Eval(values)
}

func (c Comparison) String() string {
	return c.Metric + " " + string(c.Op) + " " + strconv.FormatFloat(c.Value, 'g', -1, 64)
}

func (a And) String() string {
	parts := make([]string, len(a.Terms))
	for i, t := range a.Terms {
		parts[i] = group(t)
	}
	return strings.Join(parts, " && ")
}

func (o Or) String() string {
	parts := make([]string, len(o.Terms))
	for i, t := range o.Terms {
		parts[i] = group(t)
	}
	return strings.Join(parts, " || ")
}

func (n Not) String() string {
	if c, ok := n.Term.(Comparison); ok {
		return "!(" + c.String() + ")"
	}
	return "!(" + n.Term.String() + ")"
}

// group wraps nested compounds in parentheses.
func group(t Expr) string {
	if isAnd(t) || isOr(t) {
		return "(" + t.String() + ")"
	}
	return t.String()
}

func isAnd(e Expr) bool {
	_, ok := e.(And)
	return ok
}

func isOr(e Expr) bool {
	_, ok := e.(Or)
	return ok
}
