// Package prom adapts lexgo's MetricsCollector interface to Prometheus
// collectors and exposes an HTTP handler for scraping.
package prom

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/lexgo"
)

var _ lexgo.MetricsCollector = (*Collector)(nil)

// Collector implements lexgo.MetricsCollector on Prometheus metrics. Pass it
// to an index via lexgo.WithMetricsCollector.
type Collector struct {
	opsTotal    *prometheus.CounterVec
	opDuration  *prometheus.HistogramVec
	docsIndexed prometheus.Counter
	docsSealed  prometheus.Counter
	searchHits  prometheus.Histogram
}

// New creates a Collector and registers its metrics with reg. Use
// prometheus.DefaultRegisterer to expose them through Handler. It panics if
// metrics with these names are already registered.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		opsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lexgo",
				Name:      "operations_total",
				Help:      "Total index operations by operation and status.",
			},
			[]string{"op", "status"},
		),
		opDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lexgo",
				Name:      "operation_duration_seconds",
				Help:      "Index operation latency in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"op"},
		),
		docsIndexed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "lexgo",
				Name:      "documents_indexed_total",
				Help:      "Total documents added to the index.",
			},
		),
		docsSealed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "lexgo",
				Name:      "documents_sealed_total",
				Help:      "Total documents frozen into immutable segments.",
			},
		),
		searchHits: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "lexgo",
				Name:      "search_hits",
				Help:      "Number of hits returned per search.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
	}

	reg.MustRegister(
		c.opsTotal,
		c.opDuration,
		c.docsIndexed,
		c.docsSealed,
		c.searchHits,
	)

	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) observe(op string, duration time.Duration, err error) {
	c.opsTotal.WithLabelValues(op, status(err)).Inc()
	c.opDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordIngest implements lexgo.MetricsCollector.
func (c *Collector) RecordIngest(docs, indexed int, duration time.Duration, err error) {
	c.observe("ingest", duration, err)
	if indexed > 0 {
		c.docsIndexed.Add(float64(indexed))
	}
}

// RecordSeal implements lexgo.MetricsCollector.
func (c *Collector) RecordSeal(docs int, duration time.Duration, err error) {
	c.observe("seal", duration, err)
	if err == nil {
		c.docsSealed.Add(float64(docs))
	}
}

// RecordCommit implements lexgo.MetricsCollector.
func (c *Collector) RecordCommit(duration time.Duration, err error) {
	c.observe("commit", duration, err)
}

// RecordSearch implements lexgo.MetricsCollector.
func (c *Collector) RecordSearch(hits int, duration time.Duration, err error) {
	c.observe("search", duration, err)
	if err == nil {
		c.searchHits.Observe(float64(hits))
	}
}

// RecordClear implements lexgo.MetricsCollector.
func (c *Collector) RecordClear(duration time.Duration, err error) {
	c.observe("clear", duration, err)
}

// Handler returns the Prometheus scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
