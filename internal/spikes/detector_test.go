package spikes_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlaslens/internal/config"
	"atlaslens/internal/loader"
	"atlaslens/internal/spikes"
)

func pivotFromSeries(tool string, series []int64) *loader.MonthlyPivot {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var visits []loader.MonthlyVisit
	for i, v := range series {
		visits = append(visits, loader.MonthlyVisit{
			Month:  start.AddDate(0, i, 0),
			Tool:   tool,
			Visits: v,
		})
	}
	return loader.BuildMonthlyPivot(visits)
}

func TestDetectNewBaselineJump(t *testing.T) {
	pivot := pivotFromSeries(loader.ToolEUI, []int64{10, 12, 9, 105})
	events := spikes.NewDetector(config.DefaultPolicy()).Detect(pivot)

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, spikes.TypeNewBaselineJump, ev.EventType)
	assert.Equal(t, loader.ToolEUI, ev.Tool)
	assert.Equal(t, "2024-04", ev.Month)
	require.NotNil(t, ev.AbsoluteJump)
	assert.Equal(t, 96, *ev.AbsoluteJump)
	require.NotNil(t, ev.FromValue)
	assert.Equal(t, 9, *ev.FromValue)
	require.NotNil(t, ev.ToValue)
	assert.Equal(t, 105, *ev.ToValue)
	assert.Nil(t, ev.MagnitudePct)
}

func TestDetectMoMSpike(t *testing.T) {
	pivot := pivotFromSeries(loader.ToolRUI, []int64{40, 41, 110})
	events := spikes.NewDetector(config.DefaultPolicy()).Detect(pivot)

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, spikes.TypeMoMSpike, ev.EventType)
	assert.Equal(t, "2024-03", ev.Month)
	require.NotNil(t, ev.MagnitudePct)
	// (110 - 41) / 41 = 168.3%.
	assert.InDelta(t, 168.3, *ev.MagnitudePct, 0.05)
}

func TestDetectNewBaselineTakesPrecedence(t *testing.T) {
	// Growth from 5 to 150 would satisfy the percentage rule too, but the
	// baseline is too low for percentages to mean anything.
	pivot := pivotFromSeries(loader.ToolCDE, []int64{5, 150})
	events := spikes.NewDetector(config.DefaultPolicy()).Detect(pivot)

	require.Len(t, events, 1)
	assert.Equal(t, spikes.TypeNewBaselineJump, events[0].EventType)
}

func TestDetectIgnoresSmallMoves(t *testing.T) {
	pivot := pivotFromSeries(loader.ToolEUI, []int64{100, 140, 130, 160})
	events := spikes.NewDetector(config.DefaultPolicy()).Detect(pivot)
	assert.Empty(t, events)
}

func TestDetectLevelShift(t *testing.T) {
	series := make([]int64, 24)
	for i := 0; i < 12; i++ {
		series[i] = 50
	}
	for i := 12; i < 24; i++ {
		series[i] = 200
	}
	pivot := pivotFromSeries(loader.ToolKGExplorer, series)
	events := spikes.NewDetector(config.DefaultPolicy()).Detect(pivot)

	var shift *spikes.Event
	for i := range events {
		if events[i].EventType == spikes.TypeLevelShift {
			shift = &events[i]
		}
	}
	require.NotNil(t, shift)
	assert.Equal(t, "2025-01", shift.Month)
	require.NotNil(t, shift.BaselineBefore)
	assert.InDelta(t, 50, *shift.BaselineBefore, 1e-9)
	require.NotNil(t, shift.BaselineAfter)
	assert.InDelta(t, 200, *shift.BaselineAfter, 1e-9)
}

func TestDetectEmptyPivot(t *testing.T) {
	events := spikes.NewDetector(config.DefaultPolicy()).Detect(loader.BuildMonthlyPivot(nil))
	assert.Empty(t, events)
}

func TestDetectSortedByMagnitude(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	visits := []loader.MonthlyVisit{
		{Month: start, Tool: loader.ToolEUI, Visits: 10},
		{Month: start.AddDate(0, 1, 0), Tool: loader.ToolEUI, Visits: 500},
		{Month: start, Tool: loader.ToolRUI, Visits: 12},
		{Month: start.AddDate(0, 1, 0), Tool: loader.ToolRUI, Visits: 120},
	}
	pivot := loader.BuildMonthlyPivot(visits)

	events := spikes.NewDetector(config.DefaultPolicy()).Detect(pivot)
	require.Len(t, events, 2)
	assert.Equal(t, loader.ToolEUI, events[0].Tool)
	assert.Equal(t, loader.ToolRUI, events[1].Tool)
}
