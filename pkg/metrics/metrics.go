// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	QueueDepth          prometheus.Gauge
	BatchesTotal        prometheus.Counter
	ItemsProcessedTotal *prometheus.CounterVec

	TokensIssuedTotal      prometheus.Counter
	TokensResolvedTotal    *prometheus.CounterVec
	WindowChecksTotal      *prometheus.CounterVec
	DeliveriesTotal        *prometheus.CounterVec
	CleanupJobsTotal       *prometheus.CounterVec
	ShortenerFallbackTotal prometheus.Counter
	RateLimitDeniedTotal   *prometheus.CounterVec
	AuditEventsTotal       *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_queue_depth",
				Help: "Number of upload items currently waiting in the ingest queue.",
			},
		),
		BatchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_batches_total",
				Help: "Total ingest batches dispatched by the drain loop.",
			},
		),
		ItemsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_items_processed_total",
				Help: "Total ingest items processed by outcome (ok, failed).",
			},
			[]string{"outcome"},
		),
		TokensIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "verification_tokens_issued_total",
				Help: "Total verification tokens issued.",
			},
		),
		TokensResolvedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verification_tokens_resolved_total",
				Help: "Total token resolution attempts by outcome (verified, expired, not_found).",
			},
			[]string{"outcome"},
		),
		WindowChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verification_window_checks_total",
				Help: "Total access-window checks by result (open, closed).",
			},
			[]string{"result"},
		),
		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deliveries_total",
				Help: "Total delivery requests by outcome (granted, challenged, failed).",
			},
			[]string{"outcome"},
		),
		CleanupJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cleanup_jobs_total",
				Help: "Total deferred cleanup jobs by outcome (fired, cancelled).",
			},
			[]string{"outcome"},
		),
		ShortenerFallbackTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "shortener_fallbacks_total",
				Help: "Total times the shortener failed and the long URL was returned.",
			},
		),
		RateLimitDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_denied_total",
				Help: "Total admissions denied by the rate limiter, per action.",
			},
			[]string{"action"},
		),
		AuditEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_events_total",
				Help: "Total audit events collected by type.",
			},
			[]string{"type"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QueueDepth,
		m.BatchesTotal,
		m.ItemsProcessedTotal,
		m.TokensIssuedTotal,
		m.TokensResolvedTotal,
		m.WindowChecksTotal,
		m.DeliveriesTotal,
		m.CleanupJobsTotal,
		m.ShortenerFallbackTotal,
		m.RateLimitDeniedTotal,
		m.AuditEventsTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
