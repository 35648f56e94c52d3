package mlkit

import (
	"fmt"
	"math"
	"math/rand"
)

// KMeansResult holds the best clustering found across restarts.
type KMeansResult struct {
	Labels    []int
	Centroids [][]float64
	Inertia   float64
}

const kmeansMaxIter = 300

// KMeans clusters rows into k groups using Lloyd's algorithm with k-means++
// seeding. Restarts run from successive sub-seeds and the lowest-inertia
// solution wins, so results are deterministic for a given seed.
func KMeans(x [][]float64, k, restarts int, seed int64) (*KMeansResult, error) {
	if len(x) < k {
		return nil, fmt.Errorf("kmeans: %d rows cannot form %d clusters", len(x), k)
	}
	if restarts < 1 {
		restarts = 1
	}

	var best *KMeansResult
	for r := 0; r < restarts; r++ {
		rng := rand.New(rand.NewSource(seed + int64(r)))
		result := kmeansOnce(x, k, rng)
		if best == nil || result.Inertia < best.Inertia {
			best = result
		}
	}
	return best, nil
}

func kmeansOnce(x [][]float64, k int, rng *rand.Rand) *KMeansResult {
	centroids := seedPlusPlus(x, k, rng)
	labels := make([]int, len(x))

	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := false
		for i, row := range x {
			nearest := nearestCentroid(row, centroids)
			if labels[i] != nearest {
				labels[i] = nearest
				changed = true
			}
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, len(x[0]))
		}
		for i, row := range x {
			counts[labels[i]]++
			for j, v := range row {
				sums[labels[i]][j] += v
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Re-seed an emptied cluster from the point farthest from
				// its centroid.
				centroids[c] = append([]float64(nil), x[farthestPoint(x, labels, centroids)]...)
				continue
			}
			for j := range sums[c] {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}

		if !changed && iter > 0 {
			break
		}
	}

	var inertia float64
	for i, row := range x {
		inertia += sqDist(row, centroids[labels[i]])
	}
	return &KMeansResult{Labels: labels, Centroids: centroids, Inertia: inertia}
}

func seedPlusPlus(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), x[rng.Intn(len(x))]...))

	dists := make([]float64, len(x))
	for len(centroids) < k {
		var total float64
		for i, row := range x {
			d := math.Inf(1)
			for _, c := range centroids {
				if sd := sqDist(row, c); sd < d {
					d = sd
				}
			}
			dists[i] = d
			total += d
		}
		if total == 0 {
			centroids = append(centroids, append([]float64(nil), x[rng.Intn(len(x))]...))
			continue
		}
		target := rng.Float64() * total
		var acc float64
		pick := len(x) - 1
		for i, d := range dists {
			acc += d
			if acc >= target {
				pick = i
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), x[pick]...))
	}
	return centroids
}

func nearestCentroid(row []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(row, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func farthestPoint(x [][]float64, labels []int, centroids [][]float64) int {
	best, bestDist := 0, -1.0
	for i, row := range x {
		if d := sqDist(row, centroids[labels[i]]); d > bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
