package forecast_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlaslens/internal/config"
	"atlaslens/internal/forecast"
	"atlaslens/internal/loader"
	"atlaslens/internal/testsupport"
)

func pivotWith(counts map[string][]int64, months int) *loader.MonthlyPivot {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	var visits []loader.MonthlyVisit
	for tool, series := range counts {
		for i, v := range series {
			if v > 0 {
				visits = append(visits, loader.MonthlyVisit{
					Month:  start.AddDate(0, i, 0),
					Tool:   tool,
					Visits: v,
				})
			}
		}
	}
	// Anchor the axis even if the last months are zero.
	visits = append(visits, loader.MonthlyVisit{Month: start, Tool: loader.ToolEUI, Visits: counts[loader.ToolEUI][0]})
	visits = append(visits, loader.MonthlyVisit{
		Month: start.AddDate(0, months-1, 0), Tool: loader.ToolEUI, Visits: counts[loader.ToolEUI][months-1],
	})
	return loader.BuildMonthlyPivot(visits)
}

func longSeries(months int) []int64 {
	series := make([]int64, months)
	for i := range series {
		series[i] = int64(200 + 10*i)
	}
	return series
}

func TestGeneratePrimaryForLongHistory(t *testing.T) {
	pivot := pivotWith(map[string][]int64{loader.ToolEUI: longSeries(24)}, 24)
	engine := forecast.NewEngine(config.DefaultPolicy(), 2, testsupport.NewTestLogger())

	points := engine.Generate(context.Background(), pivot, 6)
	require.Len(t, points, 6*len(loader.AllTools))

	var euiPoints []forecast.Point
	for _, p := range points {
		if p.Tool == loader.ToolEUI {
			euiPoints = append(euiPoints, p)
		}
	}
	require.Len(t, euiPoints, 6)
	for _, p := range euiPoints {
		assert.Equal(t, forecast.MethodPrimary, p.Method)
		assert.GreaterOrEqual(t, p.Lower, 0)
		assert.LessOrEqual(t, p.Lower, p.Upper)
		assert.Greater(t, p.Predicted, 0)
	}
	assert.Equal(t, "2025-01", euiPoints[0].Month)
}

func TestGenerateFallbackForZeroSeries(t *testing.T) {
	pivot := pivotWith(map[string][]int64{loader.ToolEUI: longSeries(24)}, 24)
	engine := forecast.NewEngine(config.DefaultPolicy(), 2, testsupport.NewTestLogger())

	points := engine.Generate(context.Background(), pivot, 3)
	for _, p := range points {
		if p.Tool == loader.ToolRUI {
			// RUI has no traffic at all; the seasonal model is not admitted.
			assert.Equal(t, forecast.MethodFallback, p.Method)
			assert.GreaterOrEqual(t, p.Predicted, 0)
		}
	}
}

func TestGenerateFallbackForShortHistory(t *testing.T) {
	pivot := pivotWith(map[string][]int64{loader.ToolEUI: {100, 120, 110, 130, 125, 140}}, 6)
	engine := forecast.NewEngine(config.DefaultPolicy(), 2, testsupport.NewTestLogger())

	points := engine.Generate(context.Background(), pivot, 3)
	for _, p := range points {
		if p.Tool == loader.ToolEUI {
			assert.Equal(t, forecast.MethodFallback, p.Method)
		}
	}
}

func TestGenerateOutputsNeverNegative(t *testing.T) {
	// A steep downward trend would extrapolate below zero without clamping.
	pivot := pivotWith(map[string][]int64{loader.ToolEUI: {600, 500, 400, 300, 200, 100}}, 6)
	engine := forecast.NewEngine(config.DefaultPolicy(), 1, testsupport.NewTestLogger())

	points := engine.Generate(context.Background(), pivot, 6)
	for _, p := range points {
		assert.GreaterOrEqual(t, p.Predicted, 0)
		assert.GreaterOrEqual(t, p.Lower, 0)
		assert.GreaterOrEqual(t, p.Upper, 0)
	}
}

func TestGenerateEmptyPivot(t *testing.T) {
	engine := forecast.NewEngine(config.DefaultPolicy(), 2, testsupport.NewTestLogger())
	points := engine.Generate(context.Background(), loader.BuildMonthlyPivot(nil), 6)
	assert.Empty(t, points)
}

func TestGenerateOrderedByMonthThenTool(t *testing.T) {
	pivot := pivotWith(map[string][]int64{loader.ToolEUI: longSeries(24)}, 24)
	engine := forecast.NewEngine(config.DefaultPolicy(), 4, testsupport.NewTestLogger())

	points := engine.Generate(context.Background(), pivot, 2)
	for i := 1; i < len(points); i++ {
		prev, curr := points[i-1], points[i]
		assert.True(t, prev.Month < curr.Month || (prev.Month == curr.Month && prev.Tool < curr.Tool))
	}
}
