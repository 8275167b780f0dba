package expr

import (
	"encoding/json"
	"fmt"
	"math"
)

// Walk visits e depth-first, left to right. Returning false stops descent into children.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case And:
		for _, t := range n.Terms {
			Walk(t, fn)
		}
	case Or:
		for _, t := range n.Terms {
			Walk(t, fn)
		}
	case Not:
		Walk(n.Term, fn)
	}
}

// Comparisons returns every comparison of e in order of appearance.
func Comparisons(e Expr) []Comparison {
	var out []Comparison
	Walk(e, func(n Expr) bool {
		if c, ok := n.(Comparison); ok {
			out = append(out, c)
		}
		return true
	})
	return out
}

// Metrics returns the distinct metric names of e in order of first appearance.
func Metrics(e Expr) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range Comparisons(e) {
		if !seen[c.Metric] {
			seen[c.Metric] = true
			out = append(out, c.Metric)
		}
	}
	return out
}

// Map rebuilds e with every comparison replaced by fn(c).
func Map(e Expr, fn func(Comparison) Comparison) Expr {
	switch n := e.(type) {
	case Comparison:
		return fn(n)
	case And:
		terms := make([]Expr, len(n.Terms))
		for i, t := range n.Terms {
			terms[i] = Map(t, fn)
		}
		return And{Terms: terms}
	case Or:
		terms := make([]Expr, len(n.Terms))
		for i, t := range n.Terms {
			terms[i] = Map(t, fn)
		}
		return Or{Terms: terms}
	case Not:
		return Not{Term: Map(n.Term, fn)}
	}
	return e
}

// SetThreshold replaces the value of every comparison on metric.
func SetThreshold(e Expr, metric string, value float64) Expr {
	return Map(e, func(c Comparison) Comparison {
		if c.Metric == metric {
			c.Value = value
		}
		return c
	})
}

// Thresholds returns the distinct comparison values of e in order of first appearance.
func Thresholds(e Expr) []float64 {
	var out []float64
	for _, c := range Comparisons(e) {
		if !containsFloat(out, c.Value) {
			out = append(out, c.Value)
		}
	}
	return out
}

// ReplaceThresholds substitutes the distinct values reported by Thresholds, position by position.
// Every comparison sharing an old value receives the same new value.
func ReplaceThresholds(e Expr, values []float64) (Expr, error) {
	old := Thresholds(e)
	if len(old) != len(values) {
		return nil, fmt.Errorf("condition %q has %d thresholds, got %d values", e.String(), len(old), len(values))
	}
	return Map(e, func(c Comparison) Comparison {
		for i, v := range old {
			if v == c.Value {
				c.Value = values[i]
				break
			}
		}
		return c
	}), nil
}

// Canonical rewrites c into an equivalent ">=" or "<" comparison.
// "m <= t" becomes "m < next(t)" and "m > t" becomes "m >= next(t)", where next(t)
// is the smallest float64 greater than t.
func Canonical(c Comparison) Comparison {
	switch c.Op {
	case OpLE:
		return Comparison{Metric: c.Metric, Op: OpLT, Value: math.Nextafter(c.Value, math.Inf(1))}
	case OpGT:
		return Comparison{Metric: c.Metric, Op: OpGE, Value: math.Nextafter(c.Value, math.Inf(1))}
	}
	return c
}

func containsFloat(vs []float64, v float64) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}

// Condition carries an Expr through JSON and YAML as its display string.
type Condition struct {
	Expr
}

// MarshalJSON renders the condition.
func (c Condition) MarshalJSON() ([]byte, error) {
	if c.Expr == nil {
		return []byte(`""`), nil
	}
	return json.Marshal(c.Expr.String())
}

// UnmarshalJSON parses a condition string.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		c.Expr = nil
		return nil
	}
	e, err := Parse(s)
	if err != nil {
		return err
	}
	c.Expr = e
	return nil
}
