// Package logger builds the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
)

// New returns a JSON logger for production and a text logger otherwise.
func New(w io.Writer, production bool, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if production {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
