// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the vortice gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// APIBuckets defines histogram buckets suited for CRUD/API latencies,
// ranging from 5ms to 10s.
var APIBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vortice_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vortice_request_duration_seconds",
			Help:    "Request duration",
			Buckets: APIBuckets,
		},
		[]string{"method"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter,
	// by limit class.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vortice_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"class"},
	)

	// AuthFailuresTotal counts authentication and authorization rejections
	// by reason (invalid_token, account_unavailable, unauthenticated, forbidden).
	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vortice_auth_failures_total",
			Help: "Authentication and authorization failures",
		},
		[]string{"reason"},
	)

	// LoginFailuresTotal counts failed credential checks at the login endpoint.
	LoginFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vortice_login_failures_total",
			Help: "Failed login attempts",
		},
	)

	// TrackedBuckets reports the number of live rate-limit buckets.
	TrackedBuckets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vortice_ratelimit_tracked_buckets",
			Help: "Live rate limit buckets",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RateLimitRejectedTotal,
		AuthFailuresTotal,
		LoginFailuresTotal,
		TrackedBuckets,
	)
}
