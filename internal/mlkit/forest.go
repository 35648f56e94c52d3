package mlkit

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// ForestConfig controls random-forest training.
type ForestConfig struct {
	Trees    int
	MaxDepth int
	MinLeaf  int
	Seed     int64
}

// RandomForest is a bagged ensemble of CART trees for binary classification.
// Each tree trains on a class-balanced bootstrap so the minority class is not
// drowned out, and split quality is measured by Gini impurity.
type RandomForest struct {
	cfg         ForestConfig
	trees       []*treeNode
	importances []float64
}

type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	leaf      bool
	prob      float64
}

// maxSplitCandidates caps thresholds evaluated per feature at a node.
const maxSplitCandidates = 32

// TrainForest fits the ensemble on features x and binary labels y.
func TrainForest(x [][]float64, y []int, cfg ForestConfig) (*RandomForest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("forest: mismatched input sizes %d/%d", len(x), len(y))
	}
	var pos, neg []int
	for i, label := range y {
		if label == 1 {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}
	if len(pos) == 0 || len(neg) == 0 {
		return nil, fmt.Errorf("forest: single-class input")
	}

	dims := len(x[0])
	mtry := int(math.Sqrt(float64(dims)))
	if mtry < 1 {
		mtry = 1
	}
	perClass := (len(pos) + len(neg)) / 2
	if perClass < 1 {
		perClass = 1
	}

	f := &RandomForest{cfg: cfg, importances: make([]float64, dims)}
	for t := 0; t < cfg.Trees; t++ {
		rng := rand.New(rand.NewSource(cfg.Seed + int64(t)))

		// Balanced bootstrap: equal draws with replacement from each class.
		sample := make([]int, 0, 2*perClass)
		for i := 0; i < perClass; i++ {
			sample = append(sample, pos[rng.Intn(len(pos))])
			sample = append(sample, neg[rng.Intn(len(neg))])
		}

		builder := &treeBuilder{
			x: x, y: y, cfg: cfg, mtry: mtry, rng: rng,
			total:       float64(len(sample)),
			importances: f.importances,
		}
		f.trees = append(f.trees, builder.grow(sample, 0))
	}
	return f, nil
}

type treeBuilder struct {
	x           [][]float64
	y           []int
	cfg         ForestConfig
	mtry        int
	rng         *rand.Rand
	total       float64
	importances []float64
}

func (b *treeBuilder) grow(sample []int, depth int) *treeNode {
	positives := 0
	for _, i := range sample {
		positives += b.y[i]
	}
	prob := float64(positives) / float64(len(sample))

	if depth >= b.cfg.MaxDepth || len(sample) < 2*b.cfg.MinLeaf || positives == 0 || positives == len(sample) {
		return &treeNode{leaf: true, prob: prob}
	}

	feature, threshold, gain, ok := b.bestSplit(sample, prob)
	if !ok {
		return &treeNode{leaf: true, prob: prob}
	}

	var left, right []int
	for _, i := range sample {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < b.cfg.MinLeaf || len(right) < b.cfg.MinLeaf {
		return &treeNode{leaf: true, prob: prob}
	}

	b.importances[feature] += gain * float64(len(sample)) / b.total

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      b.grow(left, depth+1),
		right:     b.grow(right, depth+1),
	}
}

// bestSplit searches a random feature subset for the threshold with the
// largest Gini decrease.
func (b *treeBuilder) bestSplit(sample []int, parentProb float64) (feature int, threshold, gain float64, ok bool) {
	parentGini := gini(parentProb)

	features := b.rng.Perm(len(b.x[0]))[:b.mtry]
	values := make([]float64, len(sample))

	for _, f := range features {
		for i, idx := range sample {
			values[i] = b.x[idx][f]
		}
		candidates := splitCandidates(values)
		for _, cut := range candidates {
			var nLeft, posLeft, nRight, posRight float64
			for _, idx := range sample {
				if b.x[idx][f] <= cut {
					nLeft++
					posLeft += float64(b.y[idx])
				} else {
					nRight++
					posRight += float64(b.y[idx])
				}
			}
			if nLeft == 0 || nRight == 0 {
				continue
			}
			weighted := (nLeft*gini(posLeft/nLeft) + nRight*gini(posRight/nRight)) / float64(len(sample))
			if g := parentGini - weighted; g > gain {
				feature, threshold, gain, ok = f, cut, g, true
			}
		}
	}
	return feature, threshold, gain, ok
}

func splitCandidates(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var uniq []float64
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			uniq = append(uniq, v)
		}
	}
	if len(uniq) < 2 {
		return nil
	}

	mids := make([]float64, 0, len(uniq)-1)
	for i := 1; i < len(uniq); i++ {
		mids = append(mids, (uniq[i-1]+uniq[i])/2)
	}
	if len(mids) <= maxSplitCandidates {
		return mids
	}
	step := float64(len(mids)) / float64(maxSplitCandidates)
	sampled := make([]float64, 0, maxSplitCandidates)
	for i := 0; i < maxSplitCandidates; i++ {
		sampled = append(sampled, mids[int(float64(i)*step)])
	}
	return sampled
}

func gini(p float64) float64 {
	return 2 * p * (1 - p)
}

// PredictProba averages the positive-class leaf probabilities across trees.
func (f *RandomForest) PredictProba(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		var sum float64
		for _, tree := range f.trees {
			sum += tree.predict(row)
		}
		out[i] = sum / float64(len(f.trees))
	}
	return out
}

func (n *treeNode) predict(row []float64) float64 {
	for !n.leaf {
		if row[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.prob
}

// FeatureImportances returns normalized accumulated Gini decreases.
func (f *RandomForest) FeatureImportances() []float64 {
	out := append([]float64(nil), f.importances...)
	var total float64
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for i := range out {
			out[i] /= total
		}
	}
	return out
}
