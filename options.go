package shardreduce

import (
	"log/slog"

	"github.com/hupe1980/shardreduce/aggs"
	"github.com/hupe1980/shardreduce/codec"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	registry         *aggs.Registry
	contextBuilder   aggs.ReduceContextBuilder
	maxBuckets       int
	codec            codec.Codec
	compression      aggs.Compression
	memoryLimit      int64
}

// Option configures a Controller.
type Option func(*options)

// WithLogger configures structured logging for reductions.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := shardreduce.NewJSONLogger(slog.LevelDebug)
//	ctrl := shardreduce.NewController(shardreduce.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring reductions.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &shardreduce.BasicMetricsCollector{}
//	ctrl := shardreduce.NewController(shardreduce.WithMetricsCollector(metrics))
//	// ... reduce ...
//	stats := metrics.GetStats()
//	fmt.Printf("partial reduces: %d\n", stats.PartialReduceCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithRegistry configures the aggregation type registry used to decode and
// reduce aggregation trees. If nil, the built-in types are used.
func WithRegistry(r *aggs.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithReduceContextBuilder overrides how reduce contexts are created.
// By default every request gets an aggs.ContextBuilder carrying the
// controller's registry and the request's pipelines.
func WithReduceContextBuilder(b aggs.ReduceContextBuilder) Option {
	return func(o *options) {
		o.contextBuilder = b
	}
}

// WithMaxBuckets limits the buckets a final reduction may produce.
// 0 uses aggs.DefaultMaxBuckets.
func WithMaxBuckets(n int) Option {
	return func(o *options) {
		o.maxBuckets = n
	}
}

// WithCodec configures the codec for buffered aggregation trees.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures the block compression of buffered aggregation
// trees. Defaults to aggs.CompressionLZ4.
func WithCompression(c aggs.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMemoryLimit bounds the bytes of buffered aggregation trees across all
// consumers of the controller. Exceeding it fails the consuming request with
// ErrMemoryLimitExceeded. 0 disables the limit.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		compression:      aggs.CompressionLZ4,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	return o
}
