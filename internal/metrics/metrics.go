// Package metrics provides Prometheus metrics collectors for the import
// engine.
//
// Purpose:
//
//	Defines and exports Prometheus metrics for row throughput, cache
//	effectiveness, rate-limiter contention, and Target call latency. Metrics
//	are registered globally at import time and served over an optional
//	/metrics HTTP endpoint.
//
// Dependencies:
//   - github.com/prometheus/client_golang/prometheus: Prometheus Go client
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "workos_import"

var (
	// RowsProcessedTotal counts rows by terminal result.
	RowsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_processed_total",
			Help:      "Total number of CSV rows processed by result",
		},
		[]string{"result"}, // result: success, failure
	)

	// ChunkDurationSeconds measures wall-clock time to process one chunk.
	ChunkDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_duration_seconds",
			Help:      "Duration of chunk processing in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// OrgCacheHitRatio is the running org cache hit ratio, sampled per chunk.
	OrgCacheHitRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "org_cache_hit_ratio",
			Help:      "Organization cache hit ratio",
		},
	)

	// RoleCacheHitRatio is the running role cache hit ratio, sampled per chunk.
	RoleCacheHitRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "role_cache_hit_ratio",
			Help:      "Role cache hit ratio",
		},
	)

	// RateLimiterWaitSeconds measures time spent blocked on Acquire.
	RateLimiterWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_limiter_wait_seconds",
			Help:      "Time spent waiting for a rate limiter permit",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// TargetAPICallDurationSeconds measures Target HTTP call latency.
	TargetAPICallDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "target_api_call_duration_seconds",
			Help:      "Duration of Target API calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	// CircuitBreakerState exposes the breaker's current state as a gauge
	// (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state by name (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// RecordRowSuccess increments the success counter.
func RecordRowSuccess() { RowsProcessedTotal.WithLabelValues("success").Inc() }

// RecordRowFailure increments the failure counter.
func RecordRowFailure() { RowsProcessedTotal.WithLabelValues("failure").Inc() }

// RecordTargetCall observes one Target API call's duration.
func RecordTargetCall(operation, status string, durationSeconds float64) {
	TargetAPICallDurationSeconds.WithLabelValues(operation, status).Observe(durationSeconds)
}

// Handler returns the /metrics HTTP handler for the configured registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
