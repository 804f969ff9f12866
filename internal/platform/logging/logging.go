// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/p-n-ai/pai-progress/internal/platform/config"
)

// New builds a logger for cfg writing to w. Unknown levels fall back to
// info and unknown formats to JSON.
func New(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup installs the logger for cfg as the default and returns it.
func Setup(cfg config.LogConfig, w io.Writer) *slog.Logger {
	logger := New(cfg, w)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps debug, warn and error to their slog levels; anything
// else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
