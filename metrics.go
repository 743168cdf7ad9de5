package lexgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    ingestCounter   prometheus.Counter
//	    searchHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordIngest(docs, indexed int, duration time.Duration, err error) {
//	    p.ingestCounter.Add(float64(indexed))
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordIngest is called after each batch ingestion.
	// docs is the number of documents submitted, indexed is the number
	// actually added, duration is the total time taken.
	RecordIngest(docs, indexed int, duration time.Duration, err error)

	// RecordSeal is called after each segment seal.
	// docs is the number of documents frozen into the segment.
	RecordSeal(docs int, duration time.Duration, err error)

	// RecordCommit is called after each commit operation.
	RecordCommit(duration time.Duration, err error)

	// RecordSearch is called after each search operation.
	// hits is the number of results returned, duration is the time taken,
	// err is nil if successful.
	RecordSearch(hits int, duration time.Duration, err error)

	// RecordClear is called after each clear operation.
	RecordClear(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIngest(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordSeal(int, time.Duration, error)        {}
func (NoopMetricsCollector) RecordCommit(time.Duration, error)           {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordClear(time.Duration, error)            {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	IngestCount      atomic.Int64
	IngestDocs       atomic.Int64
	IngestIndexed    atomic.Int64
	IngestErrors     atomic.Int64
	IngestTotalNanos atomic.Int64
	SealCount        atomic.Int64
	SealDocs         atomic.Int64
	SealErrors       atomic.Int64
	CommitCount      atomic.Int64
	CommitErrors     atomic.Int64
	SearchCount      atomic.Int64
	SearchHits       atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	ClearCount       atomic.Int64
	ClearErrors      atomic.Int64
}

// RecordIngest implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIngest(docs, indexed int, duration time.Duration, err error) {
	b.IngestCount.Add(1)
	b.IngestDocs.Add(int64(docs))
	b.IngestIndexed.Add(int64(indexed))
	b.IngestTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.IngestErrors.Add(1)
	}
}

// RecordSeal implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSeal(docs int, duration time.Duration, err error) {
	b.SealCount.Add(1)
	b.SealDocs.Add(int64(docs))
	if err != nil {
		b.SealErrors.Add(1)
	}
}

// RecordCommit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCommit(duration time.Duration, err error) {
	b.CommitCount.Add(1)
	if err != nil {
		b.CommitErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(hits int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchHits.Add(int64(hits))
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordClear implements MetricsCollector.
func (b *BasicMetricsCollector) RecordClear(duration time.Duration, err error) {
	b.ClearCount.Add(1)
	if err != nil {
		b.ClearErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		IngestCount:    b.IngestCount.Load(),
		IngestDocs:     b.IngestDocs.Load(),
		IngestIndexed:  b.IngestIndexed.Load(),
		IngestErrors:   b.IngestErrors.Load(),
		IngestAvgNanos: b.getAvgIngestNanos(),
		SealCount:      b.SealCount.Load(),
		SealDocs:       b.SealDocs.Load(),
		SealErrors:     b.SealErrors.Load(),
		CommitCount:    b.CommitCount.Load(),
		CommitErrors:   b.CommitErrors.Load(),
		SearchCount:    b.SearchCount.Load(),
		SearchHits:     b.SearchHits.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchAvgNanos: b.getAvgSearchNanos(),
		ClearCount:     b.ClearCount.Load(),
		ClearErrors:    b.ClearErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgIngestNanos() int64 {
	count := b.IngestCount.Load()
	if count == 0 {
		return 0
	}
	return b.IngestTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgSearchNanos() int64 {
	count := b.SearchCount.Load()
	if count == 0 {
		return 0
	}
	return b.SearchTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	IngestCount    int64
	IngestDocs     int64
	IngestIndexed  int64
	IngestErrors   int64
	IngestAvgNanos int64
	SealCount      int64
	SealDocs       int64
	SealErrors     int64
	CommitCount    int64
	CommitErrors   int64
	SearchCount    int64
	SearchHits     int64
	SearchErrors   int64
	SearchAvgNanos int64
	ClearCount     int64
	ClearErrors    int64
}
