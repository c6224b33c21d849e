package colstore

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with helpers for store-level operations. Field
// names are shared with the logs of the storage packages: entity, columns,
// duration, error.
type Logger struct {
	*slog.Logger
}

// NewLogger returns a Logger writing to handler, or info-level text on
// stderr when handler is nil.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger returns a Logger writing JSON lines to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger returns a Logger writing logfmt-style text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger returns a Logger that discards everything.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// LogCommit logs the end of a write transaction.
func (l *Logger) LogCommit(ctx context.Context, duration time.Duration, err error) {
	l.outcome(ctx, slog.LevelDebug, "commit", err, "duration", duration)
}

// LogRollback logs a rolled back transaction.
func (l *Logger) LogRollback(ctx context.Context, write bool, err error) {
	l.outcome(ctx, slog.LevelDebug, "rollback", err, "write", write)
}

// LogCreate logs the creation of an entity.
func (l *Logger) LogCreate(ctx context.Context, entity string, columns int, err error) {
	l.outcome(ctx, slog.LevelInfo, "create entity", err, "entity", entity, "columns", columns)
}

// LogDrop logs the removal of an entity.
func (l *Logger) LogDrop(ctx context.Context, entity string, err error) {
	l.outcome(ctx, slog.LevelInfo, "drop entity", err, "entity", entity)
}

// outcome logs op at level on success and at error level with the cause
// otherwise.
func (l *Logger) outcome(ctx context.Context, level slog.Level, op string, err error, args ...any) {
	if err != nil {
		l.Log(ctx, slog.LevelError, op+" failed", append(args, "error", err)...)
		return
	}
	l.Log(ctx, level, op+" completed", args...)
}
