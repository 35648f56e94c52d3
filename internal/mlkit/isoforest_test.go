package mlkit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlaslens/internal/mlkit"
)

func TestIsolationForestScoresOutlierHighest(t *testing.T) {
	var x [][]float64
	for i := 0; i < 50; i++ {
		x = append(x, []float64{float64(i%10) * 0.1, float64(i%7) * 0.1})
	}
	x = append(x, []float64{50, 50})

	forest := mlkit.TrainIsolationForest(x, 100, 32, 42)
	scores := forest.Scores(x)
	require.Len(t, scores, 51)

	outlier := scores[50]
	for i := 0; i < 50; i++ {
		assert.Less(t, scores[i], outlier)
	}
	assert.Greater(t, outlier, 0.5)
}

func TestIsolationForestDeterministic(t *testing.T) {
	x := [][]float64{{1, 1}, {1.1, 0.9}, {0.9, 1.2}, {8, 8}}
	a := mlkit.TrainIsolationForest(x, 50, 4, 42).Scores(x)
	b := mlkit.TrainIsolationForest(x, 50, 4, 42).Scores(x)
	assert.Equal(t, a, b)
}
