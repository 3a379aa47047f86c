// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	RegisterMetricsEndpoint(router)

	// Test that /metrics endpoint works
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")
}

func TestRegisterMetricsEndpointWithPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	RegisterMetricsEndpointWithPath(router, "/custom/metrics")

	// Test that custom path works
	req := httptest.NewRequest("GET", "/custom/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := MetricsHandler()

	require.NotNil(t, handler)
}

func TestRecordLockAcquisition(t *testing.T) {
	// This should not panic
	RecordLockAcquisition("acquired")
	RecordLockAcquisition("timeout")
	RecordLockAcquisition("cancelled")
	RecordLockAcquisition("error")
}

func TestRecordLockAcquireWait(t *testing.T) {
	// This should not panic
	RecordLockAcquireWait(0.001)
	RecordLockAcquireWait(0.5)
}

func TestHeldLeasesGauge(t *testing.T) {
	// This should not panic
	IncHeldLeases()
	DecHeldLeases()
}

func TestRecordJobProcessed(t *testing.T) {
	// This should not panic
	RecordJobProcessed("completed")
	RecordJobProcessed("failed")
	RecordJobProcessed("requeued")
}

func TestRecordJobProcessingDuration(t *testing.T) {
	// This should not panic
	RecordJobProcessingDuration(0.05)
	RecordJobProcessingDuration(1.5)
}

func TestJobsInFlightGauge(t *testing.T) {
	// This should not panic
	IncJobsInFlight()
	DecJobsInFlight()
}

func TestRecordHTTPRequest(t *testing.T) {
	// This should not panic
	RecordHTTPRequest("GET", "/health", "200")
	RecordHTTPRequest("GET", "/metrics", "200")
}

func TestRecordHTTPRequestDuration(t *testing.T) {
	// This should not panic
	RecordHTTPRequestDuration("GET", "/health", 0.01)
	RecordHTTPRequestDuration("GET", "/metrics", 0.02)
}

func TestMetricsAreRegistered(t *testing.T) {
	// Verify all metrics are registered with Prometheus
	metrics := []prometheus.Collector{
		LockAcquisitions,
		LockAcquireWait,
		HeldLeases,
		JobsProcessed,
		JobProcessingDuration,
		JobsInFlight,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	}

	for _, metric := range metrics {
		assert.NotNil(t, metric)
	}
}
