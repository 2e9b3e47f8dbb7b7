// Package metrics exposes Prometheus collectors for the HTTP API,
// the analytics engine and the row source.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a registry and the service's collectors. Each
// instance has its own registry so tests and multiple servers do
// not collide.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	computeDuration *prometheus.HistogramVec
	degraded        *prometheus.CounterVec
	pagesFetched    *prometheus.CounterVec
	rowsFetched     *prometheus.CounterVec
	lexiconReloads  *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zapmetrics_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zapmetrics_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		computeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zapmetrics_engine_compute_duration_seconds",
				Help:    "Time to compute an analytics report",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"kind"},
		),
		degraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zapmetrics_engine_degraded_sections_total",
				Help: "Report sections zero-filled after a source failure",
			},
			[]string{"section"},
		),
		pagesFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zapmetrics_store_pages_fetched_total",
				Help: "Capped pages read from the row source",
			},
			[]string{"table"},
		),
		rowsFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zapmetrics_store_rows_fetched_total",
				Help: "Rows read from the row source",
			},
			[]string{"table"},
		),
		lexiconReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zapmetrics_lexicon_reloads_total",
				Help: "Sentiment lexicon reload attempts by result",
			},
			[]string{"result"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(
			collectors.ProcessCollectorOpts{},
		),
		m.httpRequests,
		m.httpDuration,
		m.computeDuration,
		m.degraded,
		m.pagesFetched,
		m.rowsFetched,
		m.lexiconReloads,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          m.registry,
	})
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route string, code int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveCompute records the duration of one report.
func (m *Metrics) ObserveCompute(kind string, elapsed time.Duration) {
	m.computeDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// SectionDegraded counts a zero-filled report section.
func (m *Metrics) SectionDegraded(section string) {
	m.degraded.WithLabelValues(section).Inc()
}

// PageFetched counts one page read from the store. It matches
// db.WithPageObserver.
func (m *Metrics) PageFetched(table string, rows int) {
	m.pagesFetched.WithLabelValues(table).Inc()
	m.rowsFetched.WithLabelValues(table).Add(float64(rows))
}

// LexiconReloaded counts a lexicon reload attempt.
func (m *Metrics) LexiconReloaded(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.lexiconReloads.WithLabelValues(result).Inc()
}
