// Package testsupport holds shared helpers for package tests.
package testsupport

import (
	"io"
	"log/slog"
	"time"

	"atlaslens/internal/loader"
)

// NewTestLogger returns a logger that discards everything, so test output
// stays readable.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// EventAt builds a canonical event for fixtures. The timestamp offset is
// minutes from a fixed base so ordering in tests reads naturally.
func EventAt(sessionID, tool, eventType string, minuteOffset int) loader.CanonicalEvent {
	base := time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC)
	return loader.CanonicalEvent{
		SessionID: sessionID,
		AnonID:    "anon-" + sessionID,
		Timestamp: base.Add(time.Duration(minuteOffset) * time.Minute),
		EventType: eventType,
		Tool:      tool,
		Path:      "/" + tool,
		Country:   "US",
	}
}
