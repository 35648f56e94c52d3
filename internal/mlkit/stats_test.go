package mlkit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"atlaslens/internal/mlkit"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, mlkit.Mean(nil))
	assert.Equal(t, 2.0, mlkit.Mean([]float64{1, 2, 3}))
}

func TestPopStd(t *testing.T) {
	assert.Equal(t, 0.0, mlkit.PopStd(nil))
	assert.Equal(t, 0.0, mlkit.PopStd([]float64{5, 5, 5}))
	// Population std of {2, 4} is 1, not the sample value sqrt(2).
	assert.InDelta(t, 1.0, mlkit.PopStd([]float64{2, 4}), 1e-9)
}

func TestQuantileDoesNotMutate(t *testing.T) {
	xs := []float64{3, 1, 2}
	mlkit.Quantile(0.5, xs)
	assert.Equal(t, []float64{3, 1, 2}, xs)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, mlkit.Median([]float64{3, 1, 2}))
}

func TestModeInt(t *testing.T) {
	assert.Equal(t, 0, mlkit.ModeInt(nil))
	assert.Equal(t, 7, mlkit.ModeInt([]int{7, 7, 3}))
	// Ties resolve to the smallest value.
	assert.Equal(t, 3, mlkit.ModeInt([]int{7, 3, 3, 7}))
}

func TestSafeRatio(t *testing.T) {
	assert.Equal(t, 0.0, mlkit.SafeRatio(5, 0))
	assert.Equal(t, 2.5, mlkit.SafeRatio(5, 2))
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 1.2, mlkit.Round1(1.24))
	assert.Equal(t, 1.23, mlkit.Round2(1.2349))
	assert.Equal(t, 1.235, mlkit.Round3(1.23456))
	assert.Equal(t, 1.2346, mlkit.Round4(1.23456))
}
