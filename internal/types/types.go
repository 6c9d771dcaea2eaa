// Package types provides internal types shared across metaschema packages.
package types

import (
	"context"
	"log/slog"
)

// LevelTrace is a custom log level more verbose than Debug.
// Use for per-item iteration logging (queries, resolved nodes, imports).
// Enable with: &slog.HandlerOptions{Level: slog.Level(-8)}
const LevelTrace = slog.Level(-8)

// ctx is a package-level context for logging.
var ctx = context.Background()

// Logger wraps slog.Logger with nil-safe helpers.
type Logger struct {
	L *slog.Logger
}

// Enabled returns true if logging is enabled at the given level.
func (l *Logger) Enabled(level slog.Level) bool {
	return l.L != nil && l.L.Enabled(ctx, level)
}

// Log emits a log message if logging is enabled.
func (l *Logger) Log(level slog.Level, msg string, attrs ...slog.Attr) {
	if l.L != nil && l.L.Enabled(ctx, level) {
		l.L.LogAttrs(ctx, level, msg, attrs...)
	}
}

// TraceEnabled returns true if trace-level logging is enabled.
func (l *Logger) TraceEnabled() bool {
	return l.Enabled(LevelTrace)
}

// Trace emits a trace-level log.
func (l *Logger) Trace(msg string, attrs ...slog.Attr) {
	l.Log(LevelTrace, msg, attrs...)
}

// Component returns a child logger tagged with component=name.
// A nil base yields a nil logger.
func Component(base *slog.Logger, name string) *slog.Logger {
	if base == nil {
		return nil
	}
	return base.With(slog.String("component", name))
}

// Severity constants matching model.Severity values.
const (
	SeverityFatal   = 0
	SeveritySevere  = 1
	SeverityError   = 2
	SeverityMinor   = 3
	SeverityStyle   = 4
	SeverityWarning = 5
	SeverityInfo    = 6
)

// SlogLevel maps a diagnostic severity onto a log level.
func SlogLevel(severity int) slog.Level {
	switch {
	case severity <= SeverityError:
		return slog.LevelError
	case severity <= SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
