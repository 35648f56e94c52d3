package mlkit

import (
	"math"
	"math/rand"
)

// IsolationForest scores rows by how quickly random axis-aligned splits
// isolate them; anomalies need fewer splits. Scores follow the standard
// 2^(-E[h]/c(n)) formulation, so values near 1 are highly anomalous.
type IsolationForest struct {
	trees      []*isoNode
	sampleSize int
}

type isoNode struct {
	feature int
	split   float64
	left    *isoNode
	right   *isoNode
	size    int
	leaf    bool
}

// TrainIsolationForest builds the ensemble on x with the given tree count and
// per-tree subsample size.
func TrainIsolationForest(x [][]float64, trees, sampleSize int, seed int64) *IsolationForest {
	if sampleSize > len(x) {
		sampleSize = len(x)
	}
	heightLimit := int(math.Ceil(math.Log2(math.Max(2, float64(sampleSize)))))

	f := &IsolationForest{sampleSize: sampleSize}
	for t := 0; t < trees; t++ {
		rng := rand.New(rand.NewSource(seed + int64(t)))
		sample := make([]int, sampleSize)
		perm := rng.Perm(len(x))
		copy(sample, perm[:sampleSize])
		f.trees = append(f.trees, growIsoTree(x, sample, 0, heightLimit, rng))
	}
	return f
}

func growIsoTree(x [][]float64, sample []int, depth, limit int, rng *rand.Rand) *isoNode {
	if depth >= limit || len(sample) <= 1 {
		return &isoNode{leaf: true, size: len(sample)}
	}

	feature := rng.Intn(len(x[0]))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, i := range sample {
		v := x[i][feature]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return &isoNode{leaf: true, size: len(sample)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right []int
	for _, i := range sample {
		if x[i][feature] < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &isoNode{
		feature: feature,
		split:   split,
		left:    growIsoTree(x, left, depth+1, limit, rng),
		right:   growIsoTree(x, right, depth+1, limit, rng),
	}
}

// Scores returns the anomaly score per row, higher meaning more isolated.
func (f *IsolationForest) Scores(x [][]float64) []float64 {
	cn := averagePathLength(float64(f.sampleSize))
	out := make([]float64, len(x))
	for i, row := range x {
		var sum float64
		for _, tree := range f.trees {
			sum += pathLength(tree, row, 0)
		}
		mean := sum / float64(len(f.trees))
		out[i] = math.Pow(2, -mean/cn)
	}
	return out
}

func pathLength(n *isoNode, row []float64, depth float64) float64 {
	if n.leaf {
		return depth + averagePathLength(float64(n.size))
	}
	if row[n.feature] < n.split {
		return pathLength(n.left, row, depth+1)
	}
	return pathLength(n.right, row, depth+1)
}

// averagePathLength is c(n), the expected path length of an unsuccessful BST
// search over n points.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}
