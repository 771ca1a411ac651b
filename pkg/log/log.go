// Package log configures the process-wide structured logger for the
// CarbonFlow services.
package log

import (
	"log/slog"
	"os"
)

// serviceAttr tags every record so logs from co-deployed services can be
// told apart on a shared sink.
const serviceAttr = "carbonflow"

// Setup installs the default text logger at the given level. Unknown levels
// fall back to info.
func Setup(logLevel string) {
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule returns a logger scoped to one engine component.
func WithModule(module string) *slog.Logger {
	return slog.With("service", serviceAttr, "module", module)
}
