package loader_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlaslens/internal/loader"
)

func TestNormalizeIDRejectsPlaceholders(t *testing.T) {
	for _, bad := range []string{"", "-", "TODO", "null", "None", "nan", "ab", "  -  "} {
		assert.Equal(t, "", loader.NormalizeID(bad), "expected %q to be rejected", bad)
	}
}

func TestNormalizeIDAcceptsRealIDs(t *testing.T) {
	assert.Equal(t, "sess-1234", loader.NormalizeID("sess-1234"))
	assert.Equal(t, "abcd", loader.NormalizeID("  abcd  "))
}

func TestParseQueryField(t *testing.T) {
	assert.Equal(t, "sess-1", loader.ParseQueryField("sessionId=sess-1&app=ccf-eui", "sessionId"))
	assert.Equal(t, "", loader.ParseQueryField("-", "sessionId"))
	assert.Equal(t, "", loader.ParseQueryField("sessionId=sess-1", "missing"))
}

func TestCanonicalizeDropsInvalidRows(t *testing.T) {
	rows := []loader.RawEventRow{
		{SessionID: "TODO", TimestampMs: 1700000000000},
		{SessionID: "sess-valid-1", Date: "", Time: ""},
		{SessionID: "sess-valid-2", TimestampMs: 1700000000000, EventType: "click"},
	}

	events := loader.Canonicalize(rows)
	require.Len(t, events, 1)
	assert.Equal(t, "sess-valid-2", events[0].SessionID)
	assert.Equal(t, "click", events[0].EventType)
}

func TestCanonicalizeQueryFallback(t *testing.T) {
	rows := []loader.RawEventRow{
		{
			RawQuery:    "sessionId=sess-9999&app=ccf-rui&event=hover&path=%2Frui%2Fviewer",
			TimestampMs: 1700000000000,
		},
	}

	events := loader.Canonicalize(rows)
	require.Len(t, events, 1)
	assert.Equal(t, "sess-9999", events[0].SessionID)
	assert.Equal(t, loader.ToolRUI, events[0].Tool)
	assert.Equal(t, "hover", events[0].EventType)
	assert.Equal(t, "/rui/viewer", events[0].Path)
}

func TestCanonicalizeNormalizesAnonID(t *testing.T) {
	rows := []loader.RawEventRow{
		{SessionID: "sess-0001", AnonID: "None", TimestampMs: 1700000000000},
		{SessionID: "sess-0002", AnonID: "anon-12", TimestampMs: 1700000000000},
	}

	events := loader.Canonicalize(rows)
	require.Len(t, events, 2)
	assert.Equal(t, "", events[0].AnonID)
	assert.Equal(t, "anon-12", events[1].AnonID)
}

func TestCanonicalizeDefaults(t *testing.T) {
	rows := []loader.RawEventRow{
		{SessionID: "sess-0001", TimestampMs: 1700000000000},
	}

	events := loader.Canonicalize(rows)
	require.Len(t, events, 1)
	assert.Equal(t, "unknown", events[0].EventType)
	assert.Equal(t, "-", events[0].Country)
}

func TestCanonicalizeTimestampFallback(t *testing.T) {
	rows := []loader.RawEventRow{
		{SessionID: "sess-0001", Date: "2024-03-10", Time: "14:30:00"},
	}

	events := loader.Canonicalize(rows)
	require.Len(t, events, 1)
	want := time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)
	assert.True(t, events[0].Timestamp.Equal(want))
}

func TestCanonicalizeOrdering(t *testing.T) {
	rows := []loader.RawEventRow{
		{SessionID: "sess-bbbb", TimestampMs: 1700000002000},
		{SessionID: "sess-aaaa", TimestampMs: 1700000005000},
		{SessionID: "sess-bbbb", TimestampMs: 1700000001000},
		{SessionID: "sess-aaaa", TimestampMs: 1700000003000},
	}

	events := loader.Canonicalize(rows)
	require.Len(t, events, 4)
	assert.Equal(t, "sess-aaaa", events[0].SessionID)
	assert.Equal(t, "sess-aaaa", events[1].SessionID)
	assert.True(t, events[0].Timestamp.Before(events[1].Timestamp))
	assert.Equal(t, "sess-bbbb", events[2].SessionID)
	assert.True(t, events[2].Timestamp.Before(events[3].Timestamp))
}
