// Package mlkit is the pipeline's numeric toolkit: seeded clustering,
// classification, text vectorization, changepoint detection, and smoothing,
// built on gonum's statistics primitives. Every stochastic routine takes an
// explicit seed so repeated runs produce identical artifacts.
package mlkit

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean, 0 for empty input.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// PopStd returns the population standard deviation (ddof=0), 0 for empty
// input.
func PopStd(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := stat.Mean(xs, nil)
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// Quantile returns the empirical p-quantile of xs without mutating it.
func Quantile(p float64, xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// Median returns the 0.5 quantile.
func Median(xs []float64) float64 {
	return Quantile(0.5, xs)
}

// Sum returns the sum of xs.
func Sum(xs []float64) float64 {
	return floats.Sum(xs)
}

// ModeInt returns the most frequent value; ties resolve to the smallest.
func ModeInt(xs []int) int {
	if len(xs) == 0 {
		return 0
	}
	counts := make(map[int]int)
	for _, x := range xs {
		counts[x]++
	}
	best, bestCount := 0, -1
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best
}

// SafeRatio divides a by b, returning 0 when b is zero.
func SafeRatio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// Round4 rounds to 4 decimal places, the precision used across artifacts.
func Round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}

// Round2 rounds to 2 decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Round3 rounds to 3 decimal places.
func Round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

// Round1 rounds to 1 decimal place.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}
