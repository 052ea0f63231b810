package tripod

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with tripod-specific helpers so bridge internals
// log with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. A nil handler falls
// back to a text handler on stderr at Info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{Logger: slog.New(handler)}
}

// LogOpen logs the outcome of an open task.
func (l *Logger) LogOpen(path string, numTriples int, err error) {
	if err != nil {
		l.Error("open failed", "path", path, "error", err)
	} else {
		l.Debug("document opened", "path", path, "triples", numTriples)
	}
}

// LogSearch logs the outcome of a search task.
func (l *Logger) LogSearch(pattern string, results int, err error) {
	if err != nil {
		l.Error("search failed", "pattern", pattern, "error", err)
	} else {
		l.Debug("search completed", "pattern", pattern, "results", results)
	}
}

// LogClose logs a document close.
func (l *Logger) LogClose(path string) {
	l.Debug("document closed", "path", path)
}
