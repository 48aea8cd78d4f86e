// Package metrics provides Prometheus metrics for the exchange rate engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RateRequestsTotal is a counter of rate resolution requests.
	RateRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_requests_total",
			Help: "Total number of rate resolution requests",
		},
		[]string{"route", "status"},
	)

	// UpstreamFetchesTotal is a counter of upstream exchange API calls.
	UpstreamFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_fetches_total",
			Help: "Total number of upstream exchange API calls",
		},
		[]string{"exchange", "status"},
	)

	// UpstreamFetchDuration is a histogram of upstream exchange call latencies.
	UpstreamFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_fetch_duration_seconds",
			Help:    "Latency of upstream exchange API calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"exchange"},
	)

	// CacheOpsTotal is a counter of cache lookups by result.
	CacheOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_ops_total",
			Help: "Total number of cache lookups by backend and result",
		},
		[]string{"backend", "result"},
	)

	// ProxyRoutesTotal is a counter of pair resolutions served through a hub.
	ProxyRoutesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_routes_total",
			Help: "Total number of pair resolutions composed through a proxy hub",
		},
		[]string{"hub"},
	)

	// SnapshotRefreshDuration is a histogram of hub snapshot rebuild durations.
	SnapshotRefreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "proxy_snapshot_refresh_duration_seconds",
			Help:    "Duration of hub proxy-rate snapshot rebuilds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SnapshotPairs is a gauge of directed hub pairs in the current snapshot.
	SnapshotPairs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "proxy_snapshot_pairs",
			Help: "Number of directed hub pairs in the last snapshot",
		},
	)

	// SnapshotLastRefresh is a gauge of the last snapshot rebuild timestamp.
	SnapshotLastRefresh = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "proxy_snapshot_last_refresh_timestamp",
			Help: "Unix timestamp of the last hub snapshot rebuild",
		},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint"},
	)

	// WebsocketClients is a gauge of connected websocket subscribers.
	WebsocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Number of connected websocket subscribers",
		},
	)
)

// Init initializes Prometheus metrics registry.
func Init() {
	// Register all metrics
	prometheus.MustRegister(
		RateRequestsTotal,
		UpstreamFetchesTotal,
		UpstreamFetchDuration,
		CacheOpsTotal,
		ProxyRoutesTotal,
		SnapshotRefreshDuration,
		SnapshotPairs,
		SnapshotLastRefresh,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		WebsocketClients,
	)
}

// ServeHTTP serves Prometheus metrics on the specified address.
func ServeHTTP(addr string) error {
	http.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      http.DefaultServeMux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordRateRequest records a rate resolution request and its outcome.
func RecordRateRequest(route, status string) {
	RateRequestsTotal.WithLabelValues(route, status).Inc()
}

// RecordUpstreamFetch records an upstream exchange API call.
func RecordUpstreamFetch(exchange, status string, duration time.Duration) {
	UpstreamFetchesTotal.WithLabelValues(exchange, status).Inc()
	UpstreamFetchDuration.WithLabelValues(exchange).Observe(duration.Seconds())
}

// RecordCacheOp records a cache lookup result ("hit" or "miss").
func RecordCacheOp(backend, result string) {
	CacheOpsTotal.WithLabelValues(backend, result).Inc()
}

// RecordProxyRoute records a pair resolution composed through a hub.
func RecordProxyRoute(hub string) {
	ProxyRoutesTotal.WithLabelValues(hub).Inc()
}

// RecordSnapshotRefresh records a hub snapshot rebuild.
func RecordSnapshotRefresh(duration time.Duration, pairs int) {
	SnapshotRefreshDuration.Observe(duration.Seconds())
	SnapshotPairs.Set(float64(pairs))
	SnapshotLastRefresh.SetToCurrentTime()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// SetWebsocketClients records the number of connected websocket subscribers.
func SetWebsocketClients(n int) {
	WebsocketClients.Set(float64(n))
}
