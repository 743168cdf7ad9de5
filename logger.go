package lexgo

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/lexgo/model"
)

// Logger wraps slog.Logger with lexgo-specific context.
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

// WithPath adds the index path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// WithSegment adds a segment id field to the logger.
func (l *Logger) WithSegment(id model.SegmentID) *Logger {
	return &Logger{
		Logger: l.Logger.With("segment", uint64(id)),
	}
}

// LogOpen logs an index open or create.
func (l *Logger) LogOpen(path string, profile model.Profile, segments int, err error) {
	if err != nil {
		l.Error("open failed",
			"path", path,
			"error", err,
		)
	} else {
		l.Info("index opened",
			"path", path,
			"profile", profile.String(),
			"segments", segments,
		)
	}
}

// LogIngest logs a batch ingestion.
func (l *Logger) LogIngest(ctx context.Context, docs int, indexed uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ingest failed",
			"docs", docs,
			"indexed", indexed,
			"error", err,
		)
	} else if skipped := uint64(docs) - indexed; skipped > 0 {
		l.WarnContext(ctx, "ingest completed with skipped documents",
			"docs", docs,
			"indexed", indexed,
			"skipped", skipped,
		)
	} else {
		l.DebugContext(ctx, "ingest completed",
			"docs", docs,
		)
	}
}

// LogSeal logs a builder seal, implicit or commit-driven.
func (l *Logger) LogSeal(ctx context.Context, id model.SegmentID, docs uint32, err error) {
	if err != nil {
		l.ErrorContext(ctx, "seal failed",
			"segment", uint64(id),
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "segment sealed",
			"segment", uint64(id),
			"docs", docs,
		)
	}
}

// LogCommit logs a commit.
func (l *Logger) LogCommit(ctx context.Context, segments int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "commit failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "commit completed",
			"segments", segments,
			"duration", duration,
		)
	}
}

// LogSearch logs a search.
func (l *Logger) LogSearch(ctx context.Context, hits int, total uint64, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"hits", hits,
			"total", total,
			"duration", duration,
		)
	}
}

// LogClear logs a clear.
func (l *Logger) LogClear(ctx context.Context, dropped int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "clear failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index cleared",
			"dropped_segments", dropped,
		)
	}
}
