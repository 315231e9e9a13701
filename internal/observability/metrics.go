package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate on the ops surface. Watch for: sudden drops or spikes.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent ops requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Provider API call rate by endpoint kind (current, forecast). Watch for: error vs success ratio.
	WeatherAPICallsTotal *prometheus.CounterVec

	// Provider API latency. Watch for: p95 > 2s (upstream degradation).
	WeatherAPIDuration *prometheus.HistogramVec

	// Weather cache hits/misses by outcome (hit, miss, stale_fallback).
	WeatherCacheReadsTotal *prometheus.CounterVec

	// In-flight fetches that joined an existing round-trip instead of starting one.
	InFlightJoinsTotal prometheus.Counter

	// Cities waiting in the offline pending queue.
	PendingQueueDepth prometheus.Gauge

	// Pending-queue drain passes by result (drained, offline, empty).
	PendingDrainsTotal *prometheus.CounterVec

	// Reconcile runs by result (ok, degraded). Watch for: degraded > 0 means list failures.
	ReconcileRunsTotal *prometheus.CounterVec

	// Favorites successfully refreshed across all reconcile runs.
	ReconcileUpdatedTotal prometheus.Counter

	// Wall time of one full reconcile run.
	ReconcileDurationSeconds prometheus.Histogram

	// Rate limit denials on the ops surface.
	RateLimitDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of weather provider API calls",
		},
		[]string{"kind", "status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "Weather provider API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"kind", "status"},
	)
	WeatherCacheReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherCacheReadsTotal",
			Help: "Weather cache reads by outcome (hit, miss, stale_fallback, pending_enqueued)",
		},
		[]string{"outcome"},
	)
	InFlightJoinsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inFlightJoinsTotal",
			Help: "Fetches that joined an already in-flight round-trip for the same cache key",
		},
	)
	PendingQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pendingQueueDepth",
			Help: "Cities currently queued for fetch once connectivity returns",
		},
	)
	PendingDrainsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pendingDrainsTotal",
			Help: "Pending-queue drain passes by result (drained, offline, empty)",
		},
		[]string{"result"},
	)
	ReconcileRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcileRunsTotal",
			Help: "Favorites reconcile runs by result (ok, degraded)",
		},
		[]string{"result"},
	)
	ReconcileUpdatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcileUpdatedTotal",
			Help: "Favorites successfully refreshed across all reconcile runs",
		},
	)
	ReconcileDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconcileDurationSeconds",
			Help:    "Wall time of one full reconcile run",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by the ops rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration,
		WeatherCacheReadsTotal, InFlightJoinsTotal,
		PendingQueueDepth, PendingDrainsTotal,
		ReconcileRunsTotal, ReconcileUpdatedTotal, ReconcileDurationSeconds,
		RateLimitDeniedTotal,
	)
}

// MetricsHandler returns the /metrics handler backed by the private registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
