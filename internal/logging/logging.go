// Package logging builds the process-wide slog.Logger every engine
// constructor in this core accepts, following a single-logger,
// handed-down-through-constructors convention.
package logging

import (
	"log/slog"
	"os"

	"github.com/ocx/grc-core/internal/config"
)

// New builds a logger whose level and format are driven by
// Config.Server.Env: JSON output at Info level in production, text output
// at Debug level everywhere else. No emoji in log messages — this core
// logs for machine consumption.
func New(cfg *config.Config) *slog.Logger {
	level := slog.LevelDebug
	var handler slog.Handler

	if cfg != nil && cfg.IsProduction() {
		level = slog.LevelInfo
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// WithComponent returns a child logger tagging every record with the
// emitting subsystem, so log lines from the rule engine, workflow engine,
// certification engine and coordinator can be filtered independently.
func WithComponent(base *slog.Logger, component string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("component", component)
}
