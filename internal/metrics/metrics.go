// Package metrics exposes Prometheus collectors for the storefront API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	cacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Response cache hits, misses, and evictions.",
		},
		[]string{"event"},
	)

	loginFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "auth",
			Name:      "login_failures_total",
			Help:      "Total number of failed login attempts.",
		},
	)

	accountLockouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "auth",
			Name:      "account_lockouts_total",
			Help:      "Total number of accounts entering the lockout window.",
		},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate-limit budget.",
		},
		[]string{"budget"},
	)
)

func init() {
	Registry.MustRegister(httpInFlight, httpRequests, httpDuration, cacheEvents,
		loginFailures, accountLockouts, rateLimited)
}

// IncrementInFlight marks a request as started.
func IncrementInFlight() { httpInFlight.Inc() }

// DecrementInFlight marks a request as finished.
func DecrementInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records one handled request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCacheEvent records a cache hit, miss, or eviction.
func RecordCacheEvent(event string) { cacheEvents.WithLabelValues(event).Inc() }

// RecordLoginFailure records one failed login attempt.
func RecordLoginFailure() { loginFailures.Inc() }

// RecordLockout records an account entering its lockout window.
func RecordLockout() { accountLockouts.Inc() }

// RecordRateLimited records a request rejected by the named budget.
func RecordRateLimited(budget string) { rateLimited.WithLabelValues(budget).Inc() }

// Handler serves the registry in Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
