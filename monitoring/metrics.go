// Package monitoring provides metrics and observability for the scrape monitor
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Backend transport metrics
	transportRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_transport_requests_total",
			Help: "Total number of requests sent to the scraping backend",
		},
		[]string{"operation", "status"},
	)

	transportRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrape_transport_request_duration_seconds",
			Help:    "Duration of requests sent to the scraping backend",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	// Polling metrics
	pollTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_poll_ticks_total",
			Help: "Total number of status checks by observed status",
		},
		[]string{"status"},
	)

	pollTicksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrape_poll_ticks_skipped_total",
			Help: "Ticks dropped because the previous status check was still outstanding",
		},
	)

	staleResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_stale_responses_total",
			Help: "Responses discarded because their task is no longer tracked",
		},
		[]string{"source"},
	)

	sessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_polling_sessions_total",
			Help: "Total number of polling sessions by outcome",
		},
		[]string{"outcome"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scrape_polling_sessions_active",
			Help: "Number of polling sessions currently running",
		},
	)

	// Result metrics
	resultFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_result_fetches_total",
			Help: "Total number of result retrievals",
		},
		[]string{"source", "status"},
	)

	// Batch metrics
	batchJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_batch_jobs_total",
			Help: "Total number of batch submissions processed",
		},
		[]string{"status"},
	)

	batchQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scrape_batch_queue_size",
			Help: "Current size of the batch submission queue",
		},
	)

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrape_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)
)

// RecordTransportRequest records metrics for a backend request
func RecordTransportRequest(operation, status string, duration float64) {
	transportRequestsTotal.WithLabelValues(operation, status).Inc()
	transportRequestDuration.WithLabelValues(operation, status).Observe(duration)
}

// RecordPollTick records one status check and the status it observed
func RecordPollTick(status string) {
	pollTicksTotal.WithLabelValues(status).Inc()
}

// RecordSkippedTick records a tick dropped by the overlap guard
func RecordSkippedTick() {
	pollTicksSkipped.Inc()
}

// RecordStaleResponse records a discarded response
func RecordStaleResponse(source string) {
	staleResponsesTotal.WithLabelValues(source).Inc()
}

// RecordSessionStarted bumps the active sessions gauge
func RecordSessionStarted() {
	activeSessions.Inc()
}

// RecordSessionEnded records how a polling session ended
func RecordSessionEnded(outcome string) {
	activeSessions.Dec()
	sessionsTotal.WithLabelValues(outcome).Inc()
}

// RecordResultFetch records a result retrieval
func RecordResultFetch(source, status string) {
	resultFetchesTotal.WithLabelValues(source, status).Inc()
}

// RecordBatchJob records a processed batch submission
func RecordBatchJob(status string) {
	batchJobsTotal.WithLabelValues(status).Inc()
}

// UpdateBatchQueueSize updates the batch queue size gauge
func UpdateBatchQueueSize(size int) {
	batchQueueSize.Set(float64(size))
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration)
}
