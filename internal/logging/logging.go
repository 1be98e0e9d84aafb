// Package logging builds the slog logger the ticksched CLI and its event loop
// log through.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects level and handler. Debug overrides Level.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	Debug  bool
}

// NewLogger creates a logger writing to stderr; stdout carries the run report.
func NewLogger(opts Options) *slog.Logger {
	return NewLoggerWithWriter(opts, os.Stderr)
}

// NewLoggerWithWriter creates a logger writing to w.
func NewLoggerWithWriter(opts Options, w io.Writer) *slog.Logger {
	ho := &slog.HandlerOptions{Level: opts.level()}
	if ho.Level == slog.LevelDebug {
		ho.AddSource = true
	}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		handler = slog.NewJSONHandler(w, ho)
	default:
		handler = slog.NewTextHandler(w, ho)
	}

	return slog.New(handler).With("app", "ticksched")
}

func (o Options) level() slog.Level {
	if o.Debug {
		return slog.LevelDebug
	}
	return ParseLevel(o.Level)
}

// ParseLevel converts a level name to slog.Level, falling back to Info.
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
