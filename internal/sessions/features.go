// Package sessions builds the per-session feature table every behavioral
// model reads. The table is computed once per run and treated as read-only
// afterward.
package sessions

import (
	"time"

	"atlaslens/internal/loader"
)

// Event types with dedicated feature columns. Other types still count toward
// session totals.
const (
	EventClick    = "click"
	EventError    = "error"
	EventHover    = "hover"
	EventKeyboard = "keyboard"
	EventPageView = "pageView"
)

// TrackedEventTypes lists the per-type feature columns in a fixed order.
var TrackedEventTypes = []string{EventClick, EventError, EventHover, EventKeyboard, EventPageView}

// FeatureVector is one session's aggregated behavior.
type FeatureVector struct {
	SessionID string
	AnonID    string
	Country   string

	FirstSeen time.Time
	LastSeen  time.Time

	Events           int
	UniquePaths      int
	UniqueEventTypes int
	UniqueTools      int

	IsBounce     bool
	StartHourUTC int
	IsWeekend    bool
	DurationMin  float64

	EntryTool string
	ExitTool  string
	TopTool   string

	// Nil when the session has no click / no error.
	TimeToFirstClickSec *float64
	FirstErrorPosition  *float64

	EventTypeCounts map[string]int
	ToolCounts      map[string]int
}

// EventTypeCount returns the count for one tracked event type.
func (v *FeatureVector) EventTypeCount(eventType string) int {
	return v.EventTypeCounts[eventType]
}

// Build aggregates canonical events into one feature vector per session, in a
// single pass over the (session, timestamp)-ordered event slice. An empty
// input yields an empty table, not an error.
func Build(events []loader.CanonicalEvent) []FeatureVector {
	var out []FeatureVector
	start := 0
	for i := 1; i <= len(events); i++ {
		if i == len(events) || events[i].SessionID != events[start].SessionID {
			out = append(out, buildOne(events[start:i]))
			start = i
		}
	}
	return out
}

func buildOne(events []loader.CanonicalEvent) FeatureVector {
	first := events[0]
	last := events[len(events)-1]

	v := FeatureVector{
		SessionID:       first.SessionID,
		AnonID:          first.AnonID,
		FirstSeen:       first.Timestamp,
		LastSeen:        last.Timestamp,
		Events:          len(events),
		IsBounce:        len(events) <= 1,
		StartHourUTC:    first.Timestamp.Hour(),
		IsWeekend:       isWeekend(first.Timestamp),
		DurationMin:     last.Timestamp.Sub(first.Timestamp).Minutes(),
		EventTypeCounts: make(map[string]int),
		ToolCounts:      make(map[string]int),
	}

	paths := make(map[string]bool)
	types := make(map[string]bool)
	var toolOrder []string

	for i, ev := range events {
		paths[ev.Path] = true
		types[ev.EventType] = true
		v.EventTypeCounts[ev.EventType]++

		if ev.Tool != "" {
			if v.ToolCounts[ev.Tool] == 0 {
				toolOrder = append(toolOrder, ev.Tool)
			}
			v.ToolCounts[ev.Tool]++
			if v.EntryTool == "" {
				v.EntryTool = ev.Tool
			}
			v.ExitTool = ev.Tool
		}
		if v.Country == "" && ev.Country != "-" {
			v.Country = ev.Country
		}
		if v.TimeToFirstClickSec == nil && ev.EventType == EventClick {
			sec := ev.Timestamp.Sub(first.Timestamp).Seconds()
			v.TimeToFirstClickSec = &sec
		}
		if v.FirstErrorPosition == nil && ev.EventType == EventError {
			pos := float64(i+1) / float64(len(events))
			v.FirstErrorPosition = &pos
		}
	}

	v.UniquePaths = len(paths)
	v.UniqueEventTypes = len(types)
	v.UniqueTools = len(v.ToolCounts)

	// Dominant tool by event count; ties resolve to the tool seen first.
	best := -1
	for _, tool := range toolOrder {
		if v.ToolCounts[tool] > best {
			best = v.ToolCounts[tool]
			v.TopTool = tool
		}
	}
	return v
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
