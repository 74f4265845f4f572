// Package logging configures the process-wide slog default and hands out
// component-scoped loggers. Trace ids are threaded explicitly: callers derive
// a per-run logger with WithTrace instead of mutating global state.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog default with the given level and format.
// If w is nil, os.Stderr is used. Format must be "text" or "json".
func Init(level slog.Level, format string, w ...io.Writer) {
	var writer io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		writer = w[0]
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// New returns a logger with a "component" attribute for module-scoped logging.
func New(component string) *slog.Logger {
	return slog.Default().With(slog.String("component", component))
}

// WithTrace returns a logger that stamps every record with the run's trace id.
// An empty id becomes the "-" sentinel so log lines stay grep-able.
func WithTrace(lg *slog.Logger, traceID string) *slog.Logger {
	if lg == nil {
		lg = slog.Default()
	}
	if strings.TrimSpace(traceID) == "" {
		traceID = "-"
	}
	return lg.With(slog.String("trace_id", traceID))
}

// ParseLevel maps a config string to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
