// Package logging configures the process-wide slog logger: human-readable
// text to stdout, mirrored into a size-rotated file under the logs directory.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"atlaslens/internal/config"
)

// NewLogger builds the run logger from the logging configuration.
func NewLogger(cfg *config.Config) *slog.Logger {
	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogsDirectory, "atlaslens.log"),
		MaxSize:    cfg.LogsMaxSizeInMb,
		MaxBackups: cfg.LogsMaxBackups,
		MaxAge:     cfg.LogsMaxAgeInDays,
		Compress:   true,
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, rotated), &slog.HandlerOptions{
		Level: toSlogLevel(cfg.LogLevel),
	})
	return slog.New(handler)
}

func toSlogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
