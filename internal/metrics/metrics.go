// Package metrics defines the Prometheus instruments exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendation metrics
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cropwise_recommendations_total",
			Help: "Recommendations served, by result source",
		},
		[]string{"source"}, // "remote", "local"
	)

	RemoteFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cropwise_remote_fallbacks_total",
			Help: "Remote prediction attempts that fell back to local scoring",
		},
		[]string{"reason"}, // "disabled", "breaker_open", "rate_limited", "canceled", "error"
	)

	RemoteRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cropwise_remote_request_duration_seconds",
			Help:    "Latency of remote prediction requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	DebounceSupersededTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cropwise_debounce_superseded_total",
			Help: "Debounced requests abandoned because a newer request arrived",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cropwise_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cropwise_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Disease detection metrics
	DiagnosesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cropwise_diagnoses_total",
			Help: "Disease diagnoses returned, by disease id",
		},
		[]string{"disease"},
	)

	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cropwise_upload_bytes",
			Help:    "Size of uploaded images",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 6), // 16KiB .. 16MiB
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cropwise_api_requests_total",
			Help: "HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cropwise_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordAPIRequest records one handled HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRecommendation counts a served recommendation and, when the result
// came from the local ranker, the reason the remote path was skipped.
func RecordRecommendation(source, fallbackReason string) {
	RecommendationsTotal.WithLabelValues(source).Inc()
	if fallbackReason != "" {
		RemoteFallbacksTotal.WithLabelValues(fallbackReason).Inc()
	}
}

// RecordDiagnosis counts a diagnosis and the size of the image it came from.
func RecordDiagnosis(diseaseID string, size int64) {
	DiagnosesTotal.WithLabelValues(diseaseID).Inc()
	UploadBytes.Observe(float64(size))
}
