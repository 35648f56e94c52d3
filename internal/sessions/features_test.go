package sessions_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlaslens/internal/loader"
	"atlaslens/internal/sessions"
	"atlaslens/internal/testsupport"
)

func TestBuildEmpty(t *testing.T) {
	assert.Empty(t, sessions.Build(nil))
}

func TestBuildSingleEventSession(t *testing.T) {
	events := []loader.CanonicalEvent{
		testsupport.EventAt("sess-solo", loader.ToolEUI, "pageView", 0),
	}

	table := sessions.Build(events)
	require.Len(t, table, 1)

	v := table[0]
	assert.True(t, v.IsBounce)
	assert.Equal(t, 1, v.Events)
	assert.Equal(t, 0.0, v.DurationMin)
	assert.Equal(t, loader.ToolEUI, v.EntryTool)
	assert.Equal(t, loader.ToolEUI, v.ExitTool)
	assert.Equal(t, loader.ToolEUI, v.TopTool)
	assert.Nil(t, v.TimeToFirstClickSec)
	assert.Nil(t, v.FirstErrorPosition)
}

func TestBuildAggregates(t *testing.T) {
	events := []loader.CanonicalEvent{
		testsupport.EventAt("sess-full", loader.ToolEUI, "pageView", 0),
		testsupport.EventAt("sess-full", loader.ToolEUI, "click", 2),
		testsupport.EventAt("sess-full", loader.ToolRUI, "error", 5),
		testsupport.EventAt("sess-full", loader.ToolRUI, "click", 9),
	}

	table := sessions.Build(events)
	require.Len(t, table, 1)

	v := table[0]
	assert.Equal(t, 4, v.Events)
	assert.False(t, v.IsBounce)
	assert.Equal(t, 9.0, v.DurationMin)
	assert.Equal(t, 2, v.UniqueTools)
	assert.Equal(t, 2, v.UniquePaths)
	assert.Equal(t, 3, v.UniqueEventTypes)
	assert.Equal(t, loader.ToolEUI, v.EntryTool)
	assert.Equal(t, loader.ToolRUI, v.ExitTool)
	assert.Equal(t, 2, v.EventTypeCount("click"))

	require.NotNil(t, v.TimeToFirstClickSec)
	assert.Equal(t, 120.0, *v.TimeToFirstClickSec)

	// Error was the third of four events.
	require.NotNil(t, v.FirstErrorPosition)
	assert.InDelta(t, 0.75, *v.FirstErrorPosition, 1e-9)
}

func TestBuildTopToolTieBreaksToFirstSeen(t *testing.T) {
	events := []loader.CanonicalEvent{
		testsupport.EventAt("sess-tied", loader.ToolRUI, "click", 0),
		testsupport.EventAt("sess-tied", loader.ToolEUI, "click", 1),
		testsupport.EventAt("sess-tied", loader.ToolRUI, "click", 2),
		testsupport.EventAt("sess-tied", loader.ToolEUI, "click", 3),
	}

	table := sessions.Build(events)
	require.Len(t, table, 1)
	assert.Equal(t, loader.ToolRUI, table[0].TopTool)
}

func TestBuildWeekendAndHour(t *testing.T) {
	// 2024-03-10 is a Sunday.
	events := []loader.CanonicalEvent{
		testsupport.EventAt("sess-hour", loader.ToolCDE, "pageView", 0),
	}

	table := sessions.Build(events)
	require.Len(t, table, 1)
	assert.True(t, table[0].IsWeekend)
	assert.Equal(t, 14, table[0].StartHourUTC)
	assert.Equal(t, time.Sunday, table[0].FirstSeen.Weekday())
}

func TestBuildSplitsSessions(t *testing.T) {
	events := []loader.CanonicalEvent{
		testsupport.EventAt("sess-aaaa", loader.ToolEUI, "click", 0),
		testsupport.EventAt("sess-aaaa", loader.ToolEUI, "click", 1),
		testsupport.EventAt("sess-bbbb", loader.ToolRUI, "pageView", 0),
	}

	table := sessions.Build(events)
	require.Len(t, table, 2)
	assert.Equal(t, "sess-aaaa", table[0].SessionID)
	assert.Equal(t, 2, table[0].Events)
	assert.Equal(t, "sess-bbbb", table[1].SessionID)
	assert.Equal(t, 1, table[1].Events)
}
