// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the streaming-stats engine:
// - HTTP/webhook intake throughput and latency
// - Ingest rejection counts by kind
// - Aggregator rotation/persist duration and row counts
// - Delta buffer occupancy and drop counters
// - Snapshot/recovery duration
// - Store circuit breaker state

var (
	// HTTP / intake metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Ingest metrics

	IngestAcceptedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_events_accepted_total",
			Help: "Total number of webhook events accepted by the sessions manager",
		},
		[]string{"kind"}, // play_started, play_closed
	)

	IngestRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_events_rejected_total",
			Help: "Total number of webhook events rejected by the sessions manager",
		},
		[]string{"kind", "rejection"}, // rejection: duplicate_open, unknown_close, malformed_time
	)

	LiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_live_sessions",
			Help: "Current number of live sessions tracked in memory",
		},
	)

	DeltaBufferOccupancy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_delta_buffer_occupancy",
			Help: "Number of deltas currently buffered for the in-progress minute",
		},
	)

	DeltaBufferDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_delta_buffer_dropped_total",
			Help: "Total number of deltas dropped due to delta buffer overflow",
		},
	)

	// Aggregator metrics

	AggregatorRotationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregator_rotation_duration_seconds",
			Help:    "Duration of a single minute-boundary rotation, from rotate call to persisted rows",
			Buckets: prometheus.DefBuckets,
		},
	)

	AggregatorRowsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_rows_persisted_total",
			Help: "Total number of dimension rows upserted into the store",
		},
		[]string{"dimension"},
	)

	AggregatorPersistErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_persist_errors_total",
			Help: "Total number of failed store upsert attempts during aggregation",
		},
		[]string{"dimension"},
	)

	AggregatorSkewedRotations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregator_skewed_rotations_total",
			Help: "Total number of rotations that fired late relative to their wall-clock minute boundary",
		},
	)

	// Snapshot / recovery metrics

	SnapshotDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snapshot_duration_seconds",
			Help:    "Duration of a single active-sessions snapshot write",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotRowsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshot_rows_written_total",
			Help: "Total number of session rows written across all snapshots",
		},
	)

	RecoveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recovery_duration_seconds",
			Help:    "Duration of startup recovery (snapshot load and session rehydration)",
			Buckets: prometheus.DefBuckets,
		},
	)

	RecoveryRestoredSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recovery_restored_sessions",
			Help: "Number of sessions rehydrated into the live table at the last recovery",
		},
	)

	RecoveryDiscardedStaleSessions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recovery_discarded_stale_sessions_total",
			Help: "Total number of rehydrated sessions discarded for exceeding the stale-session horizon",
		},
	)

	// Circuit breaker metrics (shared by every store-facing circuit breaker)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through a circuit breaker",
		},
		[]string{"name", "outcome"}, // outcome: success, failure, rejected
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures observed by a circuit breaker",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// TrackActiveRequest adjusts the in-flight HTTP request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

// RecordAPIRequest records one completed HTTP request's outcome and
// latency, used by the request-instrumentation middleware.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// StateToFloat converts a gobreaker state to the numeric value the
// CircuitBreakerState gauge expects.
func StateToFloat(state int) float64 {
	return float64(state)
}
