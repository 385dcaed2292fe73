// Package metrics exposes Prometheus metrics for conversation turns, escalations,
// oracle calls, transcript persistence and the HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "supportdesk"
)

// LatencyBuckets defines histogram buckets for latency metrics (in seconds).
var LatencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
	1.0, 2.0, 3.0, 5.0, 7.5, 10.0, 15.0, 20.0, 30.0, 60.0,
}

// =============================================================================
// Turn Metrics
// =============================================================================

var (
	// TurnsTotal counts processed turns by routed intent and resulting task state.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of conversation turns processed",
		},
		[]string{"intent", "task_state"},
	)

	// TurnLatency tracks end-to-end turn latency.
	TurnLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_seconds",
			Help:      "Conversation turn latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"intent"},
	)

	// EscalationsTotal counts turns flagged for a human agent.
	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Total number of turns that required escalation",
		},
		[]string{"reason"},
	)

	// DegradedTurnsTotal counts turns answered without a usable classification.
	DegradedTurnsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_turns_total",
			Help:      "Total number of turns that fell back because the oracle failed",
		},
	)

	// TaskTransitionsTotal counts scheduling task state changes.
	TaskTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_transitions_total",
			Help:      "Total number of scheduling task state transitions",
		},
		[]string{"from", "to"},
	)

	// TurnFailuresTotal counts turns that ended in an apology because a collaborator failed.
	TurnFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_failures_total",
			Help:      "Total number of turns answered with an apology",
		},
		[]string{"cause"},
	)
)

// =============================================================================
// Oracle Metrics
// =============================================================================

var (
	// OracleRequests counts oracle calls by backend, operation and outcome.
	OracleRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_requests_total",
			Help:      "Total number of language oracle calls",
		},
		[]string{"backend", "operation", "status"},
	)

	// OracleLatency tracks oracle call latency including retries.
	OracleLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_latency_seconds",
			Help:      "Language oracle call latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"backend", "operation"},
	)

	// OracleRetries counts retried oracle attempts.
	OracleRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_retries_total",
			Help:      "Total number of retried oracle attempts",
		},
		[]string{"backend", "operation"},
	)

	// CircuitBreakerState tracks the oracle breaker (0=closed, 1=open, 2=half-open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)
)

// =============================================================================
// Knowledge Metrics
// =============================================================================

var (
	// KnowledgeCacheLookups counts answer cache hits and misses.
	KnowledgeCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "knowledge_cache_lookups_total",
			Help:      "Total number of knowledge answer cache lookups",
		},
		[]string{"result"},
	)
)

// =============================================================================
// Session & Transcript Metrics
// =============================================================================

var (
	// ActiveSessions tracks the number of sessions seen by the session listing.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Number of stored sessions at the last listing",
		},
	)

	// TranscriptRecords counts transcript writes by sink and outcome.
	TranscriptRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_records_total",
			Help:      "Total number of turn records handed to transcript sinks",
		},
		[]string{"sink", "status"},
	)

	// TranscriptDropped counts records dropped because the dispatch queue was full.
	TranscriptDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_dropped_total",
			Help:      "Total number of turn records dropped on queue overflow",
		},
	)

	// DBConnectionPoolSize tracks transcript database pool usage.
	DBConnectionPoolSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connection_pool_size",
			Help:      "Transcript database connection pool size by state",
		},
		[]string{"state"},
	)
)

// =============================================================================
// HTTP Metrics
// =============================================================================

var (
	// HTTPRequests counts HTTP requests by route and status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"route", "status_code"},
	)

	// HTTPLatency tracks HTTP request latency.
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"route"},
	)

	// RateLimitedRequests counts requests rejected by the per-session limiter.
	RateLimitedRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Total number of requests rejected by rate limiting",
		},
	)
)

// =============================================================================
// Helper Functions
// =============================================================================

// RecordTurn records metrics for a completed turn.
func RecordTurn(intent, taskState string, latency time.Duration) {
	intent = sanitizeLabel(intent)
	TurnsTotal.WithLabelValues(intent, sanitizeLabel(taskState)).Inc()
	TurnLatency.WithLabelValues(intent).Observe(latency.Seconds())
}

// RecordEscalation records an escalated turn.
func RecordEscalation(reason string) {
	EscalationsTotal.WithLabelValues(sanitizeLabel(reason)).Inc()
}

// RecordTaskTransition records a scheduling task state change. No-op transitions are ignored.
func RecordTaskTransition(from, to string) {
	if from == to {
		return
	}
	TaskTransitionsTotal.WithLabelValues(sanitizeLabel(from), sanitizeLabel(to)).Inc()
}

// RecordOracleCall records the outcome and latency of one oracle operation.
func RecordOracleCall(backend, operation, status string, latency time.Duration) {
	backend = sanitizeLabel(backend)
	operation = sanitizeLabel(operation)
	OracleRequests.WithLabelValues(backend, operation, sanitizeLabel(status)).Inc()
	OracleLatency.WithLabelValues(backend, operation).Observe(latency.Seconds())
}

// RecordTranscript records a transcript write.
func RecordTranscript(sink string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	TranscriptRecords.WithLabelValues(sanitizeLabel(sink), status).Inc()
}

// SetCircuitBreakerState publishes a breaker state as a gauge value.
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(sanitizeLabel(name)).Set(float64(state))
}
