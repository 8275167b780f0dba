package domain

import "sort"

// PercentileLadder is the fixed set of percentiles precomputed for every bridge.
var PercentileLadder = []int{5, 10, 15, 20, 25, 30, 35, 40, 45, 50, 55, 60, 65, 70, 75, 80, 85, 90, 95}

// ThresholdBridge relates the thresholds of a single-metric split to the node's own
// population, so an editor can move a handle by value or by percentile.
type ThresholdBridge struct {
	Metric     string    `json:"metric"`
	Thresholds []float64 `json:"thresholds"`
	// Percentiles[i] is the percentile rank (0-100) of Thresholds[i] within the node's items.
	Percentiles []float64 `json:"percentiles"`
	// Ladder maps each PercentileLadder entry to the metric value at that percentile.
	Ladder map[int]float64 `json:"ladder"`
}

// ValueAt returns the ladder value for the ladder step nearest to percentile.
func (b *ThresholdBridge) ValueAt(percentile float64) (float64, bool) {
	if len(b.Ladder) == 0 {
		return 0, false
	}
	best, bestDist := 0, -1.0
	for _, p := range PercentileLadder {
		if _, ok := b.Ladder[p]; !ok {
			continue
		}
		d := float64(p) - percentile
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = p, d
		}
	}
	return b.Ladder[best], bestDist >= 0
}

// PercentileOf returns the ladder step whose value is closest to value.
func (b *ThresholdBridge) PercentileOf(value float64) (int, bool) {
	steps := make([]int, 0, len(b.Ladder))
	for p := range b.Ladder {
		steps = append(steps, p)
	}
	if len(steps) == 0 {
		return 0, false
	}
	sort.Ints(steps)
	best := steps[0]
	for _, p := range steps[1:] {
		if abs(b.Ladder[p]-value) < abs(b.Ladder[best]-value) {
			best = p
		}
	}
	return best, true
}

// Clone returns a deep copy of the bridge.
func (b *ThresholdBridge) Clone() *ThresholdBridge {
	out := *b
	out.Thresholds = append([]float64(nil), b.Thresholds...)
	out.Percentiles = append([]float64(nil), b.Percentiles...)
	out.Ladder = make(map[int]float64, len(b.Ladder))
	for k, v := range b.Ladder {
		out.Ladder[k] = v
	}
	return &out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
