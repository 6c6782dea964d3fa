// Package logger provides structured logging setup for autoassess.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/taskfolio/autoassess/internal/config"
)

// New creates a *slog.Logger from the given Logging config. Output goes
// to stdout as JSON, or as logfmt-style text when cfg.Format is "text",
// with a "service" attribute on every record.
func New(cfg config.Logging) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With("service", cfg.Service)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
