package expr_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/gnueaj/SAE-vis-sub000/pkg/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTrip(t *testing.T) {
	cases := []string{
		"m >= 0.5",
		"a >= 0.5 && b < 0.3",
		"a >= 0.5 || b < 0.3",
		"(a >= 0.5 && b < 0.3) || c >= 0.1",
		"a >= 0.5 && !(b >= 0.2 || c < 0.4)",
		"score_fuzz <= 1 && score_detection > -0.25",
	}
	for _, in := range cases {
		e, err := expr.Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, in, e.String())
	}
}

func TestParse_Precedence(t *testing.T) {
	e := expr.MustParse("a >= 1 || b >= 1 && c >= 1")
	or, ok := e.(expr.Or)
	require.True(t, ok)
	require.Len(t, or.Terms, 2)
	_, ok = or.Terms[1].(expr.And)
	assert.True(t, ok)
}

func TestParse_Errors(t *testing.T) {
	for _, in := range []string{"", "m", "m >=", "m >= x", "a >= 1 &", "(a >= 1", "a >= 1)", "a == 1"} {
		_, err := expr.Parse(in)
		var syn *expr.SyntaxError
		assert.True(t, errors.As(err, &syn), "input %q", in)
	}
}

func TestParse_HyphenatedMetrics(t *testing.T) {
	e, err := expr.Parse("llama-s.fuzz >= 0.5 && gemma-2b_detection<-0.25")
	require.NoError(t, err)
	assert.Equal(t, "llama-s.fuzz >= 0.5 && gemma-2b_detection < -0.25", e.String())
	assert.Equal(t, []string{"llama-s.fuzz", "gemma-2b_detection"}, expr.Metrics(e))

	again, err := expr.Parse(e.String())
	require.NoError(t, err)
	assert.Equal(t, e, again)
}

func TestIsMetricName(t *testing.T) {
	for _, ok := range []string{"m", "score_fuzz", "llama-s.fuzz", "_x1"} {
		assert.True(t, expr.IsMetricName(ok), ok)
	}
	for _, bad := range []string{"", "1st", "-m", "a b", "a>=b", "a&b"} {
		assert.False(t, expr.IsMetricName(bad), bad)
	}
}

func TestEval(t *testing.T) {
	e := expr.MustParse("a >= 0.5 && !(b < 0.2)")
	assert.True(t, e.Eval(map[string]float64{"a": 0.5, "b": 0.2}))
	assert.False(t, e.Eval(map[string]float64{"a": 0.5, "b": 0.1}))
	assert.False(t, e.Eval(map[string]float64{"b": 0.9}), "missing metric compares false")
}

func TestThresholdRewrites(t *testing.T) {
	e := expr.MustParse("a >= 0.5 && b < 0.7 || a < 0.5")
	assert.Equal(t, []float64{0.5, 0.7}, expr.Thresholds(e))
	assert.Equal(t, []string{"a", "b"}, expr.Metrics(e))

	out, err := expr.ReplaceThresholds(e, []float64{0.4, 0.8})
	require.NoError(t, err)
	assert.Equal(t, "(a >= 0.4 && b < 0.8) || a < 0.4", out.String())

	_, err = expr.ReplaceThresholds(e, []float64{0.1})
	assert.Error(t, err)

	assert.Equal(t, "a >= 0.9 && b < 0.7", expr.SetThreshold(expr.MustParse("a >= 0.5 && b < 0.7"), "a", 0.9).String())
}

func TestCanonical(t *testing.T) {
	le := expr.Canonical(expr.Comparison{Metric: "m", Op: expr.OpLE, Value: 1})
	assert.Equal(t, expr.OpLT, le.Op)
	assert.True(t, le.Holds(1))
	assert.False(t, le.Holds(1.0000001))

	gt := expr.Canonical(expr.Comparison{Metric: "m", Op: expr.OpGT, Value: 0.5})
	assert.Equal(t, expr.OpGE, gt.Op)
	assert.False(t, gt.Holds(0.5))

	ge := expr.High("m", 0.5)
	assert.Equal(t, ge, expr.Canonical(ge))
}

func TestCondition_JSON(t *testing.T) {
	in := expr.Condition{Expr: expr.MustParse("a >= 0.5 || b < 0.1")}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, `"a >= 0.5 || b < 0.1"`, string(data))

	var out expr.Condition
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.String(), out.String())

	assert.Error(t, json.Unmarshal([]byte(`"a >>= 1"`), &out))
}
