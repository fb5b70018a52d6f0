// Package metrics provides Prometheus instrumentation for the risk service.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lendrisk",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lendrisk",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AssessmentsTotal counts completed risk assessments by scoring tier and
	// resulting category. Tier is "remote", "local", "mock", or "cache".
	AssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lendrisk",
			Name:      "assessments_total",
			Help:      "Total risk assessments by scoring tier and risk category.",
		},
		[]string{"tier", "category"},
	)

	// AssessmentFailuresTotal counts assessments where every tier failed.
	AssessmentFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lendrisk",
			Name:      "assessment_failures_total",
			Help:      "Total assessments that exhausted every scoring tier.",
		},
	)

	// FallbacksTotal counts tier-to-tier fallback transitions.
	FallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lendrisk",
			Name:      "fallbacks_total",
			Help:      "Total scoring fallbacks by failed tier.",
		},
		[]string{"from_tier"},
	)

	// RemoteScoringDuration observes remote scoring endpoint latency.
	RemoteScoringDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lendrisk",
			Name:      "remote_scoring_duration_seconds",
			Help:      "Remote scoring request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// CacheHitsTotal counts prediction cache hits.
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lendrisk",
			Name:      "cache_hits_total",
			Help:      "Total prediction cache hits.",
		},
	)

	// CacheMissesTotal counts prediction cache misses (including stale entries).
	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lendrisk",
			Name:      "cache_misses_total",
			Help:      "Total prediction cache misses.",
		},
	)

	// SyntheticDataTotal counts assessments that ran on synthetic chain data.
	SyntheticDataTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lendrisk",
			Name:      "synthetic_data_total",
			Help:      "Total assessments scored from synthetic blockchain data.",
		},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lendrisk",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AssessmentsTotal,
		AssessmentFailuresTotal,
		FallbacksTotal,
		RemoteScoringDuration,
		CacheHitsTotal,
		CacheMissesTotal,
		SyntheticDataTotal,
		ActiveWebSocketClients,
	)
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
