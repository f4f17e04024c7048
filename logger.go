package shardreduce

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/shardreduce/model"
)

// Logger wraps slog.Logger with reduction-specific context.
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
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithShards adds the expected shard count to the logger.
func (l *Logger) WithShards(numShards int) *Logger {
	return &Logger{
		Logger: l.Logger.With("shards", numShards),
	}
}

// WithShard adds a shard index field to the logger.
func (l *Logger) WithShard(shardIndex int) *Logger {
	return &Logger{
		Logger: l.Logger.With("shard_index", shardIndex),
	}
}

// LogPartialReduce logs a partial reduction of the consumer buffer.
func (l *Logger) LogPartialReduce(ctx context.Context, phase int, previousBytes, bufferedBytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "partial reduce failed",
			"phase", phase,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "aggs partial reduction",
			"phase", phase,
			"previous_bytes", previousBytes,
			"buffered_bytes", bufferedBytes,
		)
	}
}

// LogFinalReduce logs the final reduction of a query phase.
func (l *Logger) LogFinalReduce(ctx context.Context, phases, shards int, totalHits *model.TotalHits, err error) {
	if err != nil {
		l.ErrorContext(ctx, "final reduce failed",
			"phases", phases,
			"shards", shards,
			"error", err,
		)
		return
	}
	hits := "disabled"
	if totalHits != nil {
		hits = totalHits.String()
	}
	l.DebugContext(ctx, "final reduce completed",
		"phases", phases,
		"shards", shards,
		"total_hits", hits,
	)
}

// LogFetchMiss logs a merged doc whose shard has no fetch result.
func (l *Logger) LogFetchMiss(ctx context.Context, shardIndex, doc int) {
	l.WithShard(shardIndex).DebugContext(ctx, "fetch result missing, skipping hit",
		"doc", doc,
	)
}

// LogListenerPanic logs a recovered progress listener panic.
func (l *Logger) LogListenerPanic(ctx context.Context, callback string, recovered any) {
	l.WarnContext(ctx, "progress listener panicked",
		"callback", callback,
		"panic", recovered,
	)
}
