// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LockAcquisitions tracks lock acquisition attempts by outcome.
	LockAcquisitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lock_acquisitions_total",
			Help: "Total lock acquisition attempts by outcome (acquired/timeout/cancelled/error)",
		},
		[]string{"outcome"},
	)

	// LockAcquireWait tracks how long successful acquisitions waited.
	LockAcquireWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lock_acquire_wait_seconds",
			Help:    "Time spent waiting for successful lock acquisitions in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// HeldLeases tracks the number of leases this instance currently holds.
	HeldLeases = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "held_leases",
			Help: "Number of leases currently held by this instance",
		},
	)

	// JobsProcessed tracks jobs processed by status.
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Total jobs processed by status (completed/failed/requeued)",
		},
		[]string{"status"},
	)

	// JobProcessingDuration tracks job handler duration.
	JobProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "job_processing_duration_seconds",
			Help:    "Job handler duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// JobsInFlight tracks jobs currently being processed.
	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobs_in_flight",
			Help: "Number of jobs currently being processed",
		},
	)

	// HTTPRequestsTotal tracks total HTTP requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// RegisterMetricsEndpoint registers the /metrics endpoint on a Gin router.
func RegisterMetricsEndpoint(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RegisterMetricsEndpointWithPath registers the metrics endpoint at a custom path.
func RegisterMetricsEndpointWithPath(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// MetricsHandler returns the Prometheus HTTP handler.
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// RecordLockAcquisition records the outcome of a lock acquisition attempt.
func RecordLockAcquisition(outcome string) {
	LockAcquisitions.WithLabelValues(outcome).Inc()
}

// RecordLockAcquireWait records the wait time of a successful acquisition.
func RecordLockAcquireWait(seconds float64) {
	LockAcquireWait.Observe(seconds)
}

// IncHeldLeases increments the held-lease gauge.
func IncHeldLeases() {
	HeldLeases.Inc()
}

// DecHeldLeases decrements the held-lease gauge.
func DecHeldLeases() {
	HeldLeases.Dec()
}

// RecordJobProcessed records a processed job by status.
func RecordJobProcessed(status string) {
	JobsProcessed.WithLabelValues(status).Inc()
}

// RecordJobProcessingDuration records a job handler's duration.
func RecordJobProcessingDuration(seconds float64) {
	JobProcessingDuration.Observe(seconds)
}

// IncJobsInFlight increments the in-flight job gauge.
func IncJobsInFlight() {
	JobsInFlight.Inc()
}

// DecJobsInFlight decrements the in-flight job gauge.
func DecJobsInFlight() {
	JobsInFlight.Dec()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, path, status string) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(method, path string, seconds float64) {
	HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}
