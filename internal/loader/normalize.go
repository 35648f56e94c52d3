package loader

import (
	"net/url"
	"sort"
	"strings"
	"time"
)

// placeholderIDs are values the collector emits when no real identifier was
// available. Both session tokens and persistent anonymous ids use the same
// blacklist.
var placeholderIDs = map[string]bool{
	"":     true,
	"-":    true,
	"TODO": true,
	"null": true,
	"None": true,
	"nan":  true,
}

// NormalizeID validates a session or anonymous identifier. Placeholder values
// and identifiers shorter than 4 characters are rejected; the empty string
// signals an invalid id.
func NormalizeID(val string) string {
	text := strings.TrimSpace(val)
	if placeholderIDs[text] {
		return ""
	}
	if len(text) < 4 {
		return ""
	}
	return text
}

// ParseQueryField extracts a single key from a raw query string.
func ParseQueryField(rawQuery, key string) string {
	if rawQuery == "" || rawQuery == "-" {
		return ""
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(values.Get(key))
}

// RawEventRow is one tracked-interaction row as scanned from the log. The
// collector packs the event payload into the query string; Canonicalize
// extracts the named fields from RawQuery unless they are already set.
type RawEventRow struct {
	AnonID      string
	Date        string // YYYY-MM-DD
	Time        string // HH:MM:SS
	TimestampMs int64  // 0 when absent
	Country     string
	RawQuery    string // cs_uri_query, for fallback field extraction

	SessionID     string
	App           string
	EventType     string
	Path          string
	Label         string
	Action        string
	Tab           string
	Value         string
	Message       string
	ReasonMessage string
	ReasonStack   string
	ErrorPath     string
}

// CanonicalEvent is a validated, timestamp-resolved, tool-attributed
// interaction record. Tool is "" when no attribution matched.
type CanonicalEvent struct {
	SessionID string
	AnonID    string
	Timestamp time.Time
	EventType string
	Tool      string
	Path      string
	Country   string

	Label         string
	Action        string
	Tab           string
	Value         string
	Message       string
	ReasonMessage string
	ReasonStack   string
	ErrorPath     string
}

// extractQueryFields fills the payload fields from the raw query string,
// keeping any field a caller already populated.
func (r *RawEventRow) extractQueryFields() {
	if r.RawQuery == "" {
		return
	}
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = ParseQueryField(r.RawQuery, key)
		}
	}
	fill(&r.SessionID, "sessionId")
	fill(&r.App, "app")
	fill(&r.EventType, "event")
	fill(&r.Path, "path")
	fill(&r.Label, "e.label")
	fill(&r.Action, "e.action")
	fill(&r.Tab, "e.tab")
	fill(&r.Value, "e.value")
	fill(&r.Message, "e.message")
	fill(&r.ReasonMessage, "e.reason.message")
	fill(&r.ReasonStack, "e.reason.stack")
	fill(&r.ErrorPath, "e.path")
}

// resolveTimestamp prefers the millisecond epoch field and falls back to
// combining the date and time-of-day columns. Returns the zero time when
// neither resolves.
func resolveTimestamp(row RawEventRow) time.Time {
	if row.TimestampMs > 0 {
		return time.UnixMilli(row.TimestampMs).UTC()
	}
	if row.Date == "" || row.Time == "" {
		return time.Time{}
	}
	ts, err := time.Parse("2006-01-02 15:04:05", row.Date+" "+row.Time)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// Canonicalize converts raw tracked-interaction rows into canonical events.
// Rows without a valid session id or a resolvable timestamp are dropped. A
// placeholder anonymous id empties the field instead of dropping the row. The
// result is sorted by (session id, timestamp) ascending, the order every
// downstream consumer depends on.
func Canonicalize(rows []RawEventRow) []CanonicalEvent {
	events := make([]CanonicalEvent, 0, len(rows))
	for _, row := range rows {
		row.extractQueryFields()

		sessionID := NormalizeID(row.SessionID)
		if sessionID == "" {
			continue
		}
		ts := resolveTimestamp(row)
		if ts.IsZero() {
			continue
		}

		eventType := row.EventType
		if eventType == "" {
			eventType = "unknown"
		}
		country := row.Country
		if country == "" {
			country = "-"
		}

		events = append(events, CanonicalEvent{
			SessionID:     sessionID,
			AnonID:        NormalizeID(row.AnonID),
			Timestamp:     ts,
			EventType:     eventType,
			Tool:          MapTool(row.App, row.Path),
			Path:          row.Path,
			Country:       country,
			Label:         row.Label,
			Action:        row.Action,
			Tab:           row.Tab,
			Value:         row.Value,
			Message:       row.Message,
			ReasonMessage: row.ReasonMessage,
			ReasonStack:   row.ReasonStack,
			ErrorPath:     row.ErrorPath,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].SessionID != events[j].SessionID {
			return events[i].SessionID < events[j].SessionID
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}
