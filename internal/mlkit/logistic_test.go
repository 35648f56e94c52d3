package mlkit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlaslens/internal/mlkit"
)

func TestLogisticLearnsSeparableData(t *testing.T) {
	var x [][]float64
	var y []int
	for i := 0; i < 20; i++ {
		x = append(x, []float64{-1 - float64(i)*0.05})
		y = append(y, 0)
	}
	for i := 0; i < 20; i++ {
		x = append(x, []float64{1 + float64(i)*0.05})
		y = append(y, 1)
	}

	model := mlkit.NewLogistic()
	require.NoError(t, model.Fit(x, y))

	probs := model.PredictProba([][]float64{{-2}, {2}})
	assert.Less(t, probs[0], 0.5)
	assert.Greater(t, probs[1], 0.5)
}

func TestLogisticRejectsSingleClass(t *testing.T) {
	x := [][]float64{{1}, {2}}
	assert.Error(t, mlkit.NewLogistic().Fit(x, []int{1, 1}))
	assert.Error(t, mlkit.NewLogistic().Fit(x, []int{0, 0}))
}

func TestLogisticRejectsEmptyInput(t *testing.T) {
	assert.Error(t, mlkit.NewLogistic().Fit(nil, nil))
}
