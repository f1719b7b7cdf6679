// Package metrics provides Prometheus metrics for the front-desk service.
// HTTP metrics:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// Domain metrics:
//   - catalog_entries: Gauge with the size of the live price catalog
//   - catalog_reloads_total: Counter with an outcome label
//   - documents_generated_total: Counter with a kind label
//   - remote_requests_total: Counter with operation and outcome labels
//   - active_sessions: Gauge with the number of open operator sessions
//
// All metrics are registered with the Prometheus default registry during
// package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Clients currently tracked by the rate limiter",
		},
	)

	CatalogEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_entries",
			Help: "Entries in the live price catalog",
		},
	)

	CatalogReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_reloads_total",
			Help: "Catalog reload attempts",
		},
		[]string{"outcome"},
	)

	DocumentsGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_generated_total",
			Help: "PDF documents generated",
		},
		[]string{"kind"},
	)

	RemoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_requests_total",
			Help: "Calls to the order service",
		},
		[]string{"operation", "outcome"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Open operator sessions",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(CatalogEntries)
	prometheus.MustRegister(CatalogReloadsTotal)
	prometheus.MustRegister(DocumentsGeneratedTotal)
	prometheus.MustRegister(RemoteRequestsTotal)
	prometheus.MustRegister(ActiveSessions)
}
