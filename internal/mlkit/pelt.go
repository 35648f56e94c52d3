package mlkit

import "sort"

// PELTMeanShift finds mean-level changepoints in a series using the PELT
// dynamic program with an L2 segment cost. The returned indexes are interior
// segment starts in ascending order; an index t means the segment beginning
// at t has a different mean than the one before it.
func PELTMeanShift(series []float64, penalty float64) []int {
	n := len(series)
	if n < 2 {
		return nil
	}

	// Prefix sums for O(1) L2 segment cost.
	sum := make([]float64, n+1)
	sumSq := make([]float64, n+1)
	for i, v := range series {
		sum[i+1] = sum[i] + v
		sumSq[i+1] = sumSq[i] + v*v
	}
	cost := func(s, t int) float64 {
		// Cost of segment [s, t).
		length := float64(t - s)
		segSum := sum[t] - sum[s]
		return (sumSq[t] - sumSq[s]) - segSum*segSum/length
	}

	best := make([]float64, n+1)
	prev := make([]int, n+1)
	best[0] = -penalty
	candidates := []int{0}

	for t := 1; t <= n; t++ {
		bestCost := 0.0
		bestTau := 0
		for i, tau := range candidates {
			c := best[tau] + cost(tau, t) + penalty
			if i == 0 || c < bestCost {
				bestCost = c
				bestTau = tau
			}
		}
		best[t] = bestCost
		prev[t] = bestTau

		// PELT pruning: discard candidates that can never win again.
		pruned := candidates[:0]
		for _, tau := range candidates {
			if best[tau]+cost(tau, t) <= best[t] {
				pruned = append(pruned, tau)
			}
		}
		candidates = append(pruned, t)
	}

	var cps []int
	for t := n; t > 0; t = prev[t] {
		if prev[t] > 0 {
			cps = append(cps, prev[t])
		}
	}
	sort.Ints(cps)
	return cps
}
