// Package logging holds the worker's global structured logger. A worker
// process logs request lifecycle events (request_received,
// request_resolved, shutdown) to one shared *slog.Logger rather than
// threading a logger through every call, matching how the rest of this
// codebase accesses logging.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	l := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Store(l)
}

// L returns the current global logger.
func L() *slog.Logger { return logger.Load() }

// Set replaces the global logger, used once at startup after config has
// picked a format and level.
func Set(l *slog.Logger) {
	if l != nil {
		logger.Store(l)
	}
}

// New builds a logger for the given format ("text" or "json") and level.
// A nil writer defaults to stderr, where the host expects the worker's
// diagnostic output (stdout/the inherited socket carry protocol frames
// only).
func New(format string, level slog.Leveler, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	var h slog.Handler
	switch format {
	case "json":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(h)
}
