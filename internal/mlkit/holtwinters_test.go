package mlkit_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlaslens/internal/mlkit"
)

func TestHoltWintersRequiresFullSeason(t *testing.T) {
	hw := mlkit.NewHoltWinters(12)
	_, _, err := hw.Forecast(make([]float64, 11), 6)
	assert.Error(t, err)
}

func TestHoltWintersTracksSeasonalPattern(t *testing.T) {
	// Two years of a strong 12-month cycle with a mild upward trend.
	var series []float64
	for i := 0; i < 24; i++ {
		seasonal := 0.0
		if i%12 == 6 {
			seasonal = 50
		}
		series = append(series, 100+float64(i)+seasonal)
	}

	hw := mlkit.NewHoltWinters(12)
	pred, sigma, err := hw.Forecast(series, 12)
	require.NoError(t, err)
	require.Len(t, pred, 12)
	assert.GreaterOrEqual(t, sigma, 0.0)

	// The seasonal peak month should forecast clearly above its neighbors.
	assert.Greater(t, pred[6], pred[5]+20)
	assert.Greater(t, pred[6], pred[7]+20)

	for _, p := range pred {
		assert.False(t, math.IsNaN(p))
	}
}

func TestHoltWintersConstantSeries(t *testing.T) {
	series := make([]float64, 24)
	for i := range series {
		series[i] = 250
	}

	hw := mlkit.NewHoltWinters(12)
	pred, sigma, err := hw.Forecast(series, 6)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sigma, 1e-9)
	for _, p := range pred {
		assert.InDelta(t, 250.0, p, 1e-6)
	}
}
