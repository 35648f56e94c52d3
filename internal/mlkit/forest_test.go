package mlkit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlaslens/internal/mlkit"
)

func separableForestData() ([][]float64, []int) {
	var x [][]float64
	var y []int
	for i := 0; i < 30; i++ {
		// Second column is pure noise; only the first separates.
		x = append(x, []float64{float64(i % 5), float64(i % 7)})
		y = append(y, 0)
	}
	for i := 0; i < 30; i++ {
		x = append(x, []float64{100 + float64(i%5), float64(i % 7)})
		y = append(y, 1)
	}
	return x, y
}

func TestForestLearnsSeparableData(t *testing.T) {
	x, y := separableForestData()
	forest, err := mlkit.TrainForest(x, y, mlkit.ForestConfig{Trees: 20, MaxDepth: 5, MinLeaf: 1, Seed: 42})
	require.NoError(t, err)

	probs := forest.PredictProba([][]float64{{2, 3}, {102, 3}})
	assert.Less(t, probs[0], 0.5)
	assert.Greater(t, probs[1], 0.5)
}

func TestForestImportancesFavorSignalColumn(t *testing.T) {
	x, y := separableForestData()
	forest, err := mlkit.TrainForest(x, y, mlkit.ForestConfig{Trees: 20, MaxDepth: 5, MinLeaf: 1, Seed: 42})
	require.NoError(t, err)

	imp := forest.FeatureImportances()
	require.Len(t, imp, 2)
	assert.Greater(t, imp[0], imp[1])

	var total float64
	for _, v := range imp {
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestForestRejectsSingleClass(t *testing.T) {
	x := [][]float64{{1}, {2}}
	_, err := mlkit.TrainForest(x, []int{0, 0}, mlkit.ForestConfig{Trees: 5, MaxDepth: 3, MinLeaf: 1, Seed: 42})
	assert.Error(t, err)
}

func TestForestDeterministic(t *testing.T) {
	x, y := separableForestData()
	cfg := mlkit.ForestConfig{Trees: 10, MaxDepth: 5, MinLeaf: 1, Seed: 42}

	a, err := mlkit.TrainForest(x, y, cfg)
	require.NoError(t, err)
	b, err := mlkit.TrainForest(x, y, cfg)
	require.NoError(t, err)

	assert.Equal(t, a.PredictProba(x), b.PredictProba(x))
}
