package proxima

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with proxima-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// LogBuild logs an index build.
func (l *Logger) LogBuild(ctx context.Context, kind string, count, dimension int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"kind", kind,
			"count", count,
			"dimension", dimension,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "build completed",
			"kind", kind,
			"count", count,
			"dimension", dimension,
		)
	}
}

// LogKNNSearch logs a batch k-nearest-neighbor search.
func (l *Logger) LogKNNSearch(ctx context.Context, queries, k int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "knn search failed",
			"queries", queries,
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "knn search completed",
			"queries", queries,
			"k", k,
		)
	}
}

// LogRadiusSearch logs a batch radius search.
func (l *Logger) LogRadiusSearch(ctx context.Context, queries int, radius float32, found int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "radius search failed",
			"queries", queries,
			"radius", radius,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "radius search completed",
			"queries", queries,
			"radius", radius,
			"found", found,
		)
	}
}

// LogSnapshot logs a snapshot save.
func (l *Logger) LogSnapshot(ctx context.Context, target string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"target", target,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"target", target,
		)
	}
}

// LogLoad logs a snapshot load.
func (l *Logger) LogLoad(ctx context.Context, source string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"source", source,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "load completed",
			"source", source,
		)
	}
}
