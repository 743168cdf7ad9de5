package lexgo

import (
	"log/slog"
)

const (
	// DefaultMaxSegmentDocs is the builder size at which ingestion seals
	// the live builder into an immutable segment.
	DefaultMaxSegmentDocs = 100_000

	// DefaultBlockCacheCapacity is the default number of decoded postings
	// blocks kept hot across searches.
	DefaultBlockCacheCapacity = 1024
)

type options struct {
	logger             *Logger
	metricsCollector   MetricsCollector
	memoryLimitBytes   uint64
	ingestDocsPerSec   float64
	maxSegmentDocs     uint32
	blockCacheCapacity int
}

// Option configures index constructor/open behavior.
//
// Today options primarily exist to avoid exploding the API surface
// (e.g. tuning-specific constructor variants).
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := lexgo.NewJSONLogger(slog.LevelInfo)
//	idx, _ := lexgo.Create(path, model.ProfileBalanced, lexgo.WithLogger(logger))
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

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &lexgo.BasicMetricsCollector{}
//	idx, _ := lexgo.Open(path, lexgo.WithMetricsCollector(metrics))
//	// ... use idx ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithMemoryLimit caps the bytes the live builder may hold before
// ingestion fails with ErrAllocationFailed. Zero means no limit.
//
// The limit covers mutable indexing state only. Sealed segments are
// memory-mapped and stay outside the budget.
func WithMemoryLimit(bytes uint64) Option {
	return func(o *options) {
		o.memoryLimitBytes = bytes
	}
}

// WithIngestRateLimit throttles ingestion to roughly docsPerSec documents
// per second, smoothing bursts against a token bucket. Zero or negative
// disables throttling.
func WithIngestRateLimit(docsPerSec float64) Option {
	return func(o *options) {
		o.ingestDocsPerSec = docsPerSec
	}
}

// WithMaxSegmentDocs sets the builder document count at which ingestion
// automatically seals the live builder into an immutable segment.
//
// Smaller values bound builder memory and produce more, smaller segments;
// larger values amortize seal cost over bigger batches. Zero keeps
// DefaultMaxSegmentDocs.
func WithMaxSegmentDocs(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSegmentDocs = n
		}
	}
}

// WithBlockCacheCapacity sets the number of decoded postings blocks kept
// in the shared LRU cache. Zero or negative keeps DefaultBlockCacheCapacity.
func WithBlockCacheCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.blockCacheCapacity = n
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:             NoopLogger(),
		metricsCollector:   NoopMetricsCollector{},
		maxSegmentDocs:     DefaultMaxSegmentDocs,
		blockCacheCapacity: DefaultBlockCacheCapacity,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
