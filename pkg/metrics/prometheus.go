// Package metrics provides Prometheus metrics for the comparables service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBucketsMs = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// Manager owns every metric of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ranking
	rankRequests        *prometheus.CounterVec
	rankLatency         prometheus.Histogram
	candidatesScored    prometheus.Counter
	comparablesReturned prometheus.Histogram
	outliersFlagged     *prometheus.CounterVec
	scoreCacheHits      prometheus.Counter
	scoreCacheMisses    prometheus.Counter

	// Jobs
	jobsSubmitted *prometheus.CounterVec
	jobsFinished  *prometheus.CounterVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Record store
	storeQueryLatency *prometheus.HistogramVec
	storeRecords      prometheus.Gauge
	recordsImported   prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its metrics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "comps",
		subsystem:        "comparables",
		histogramBuckets: latencyBucketsMs,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.rankRequests = m.counterVec("rank_requests_total", "Ranking requests by outcome", "outcome")
	m.rankLatency = m.histogram("rank_latency_milliseconds", "End-to-end ranking latency in milliseconds", m.histogramBuckets)
	m.candidatesScored = m.counter("candidates_scored_total", "Candidates scored across all requests")
	m.comparablesReturned = m.histogram("comparables_returned", "Comparables returned per request",
		[]float64{0, 1, 3, 5, 10, 25, 50, 100})
	m.outliersFlagged = m.counterVec("outliers_flagged_total", "Outlier flags attached, by kind", "kind")
	m.scoreCacheHits = m.counter("score_cache_hits_total", "Per-pair scores served from cache")
	m.scoreCacheMisses = m.counter("score_cache_misses_total", "Per-pair scores computed")

	m.jobsSubmitted = m.counterVec("jobs_submitted_total", "Comparable jobs submitted, by result", "result")
	m.jobsFinished = m.counterVec("jobs_finished_total", "Comparable jobs finished, by status", "status")

	m.queueSize = m.gauge("queue_size", "Jobs waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue fill ratio")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Jobs enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Enqueue attempts rejected")

	m.workerCount = m.gauge("worker_count", "Configured job workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Workers currently running a job")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Job processing latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Jobs that failed in a worker")

	m.storeQueryLatency = m.histogramVec("store_query_latency_milliseconds", "Record store query latency in milliseconds", "driver", "op")
	m.storeRecords = m.gauge("store_records", "Records in the store")
	m.recordsImported = m.counter("records_imported_total", "Records imported from shapefiles")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.httpErrors = m.counterVec("http_errors_total", "HTTP errors by endpoint, method and kind", "endpoint", "method", "error_type")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordRank records one ranking request.
func RecordRank(outcome string, latencyMs float64, scored, returned int) {
	globalManager.rankRequests.WithLabelValues(outcome).Inc()
	globalManager.rankLatency.Observe(latencyMs)
	globalManager.candidatesScored.Add(float64(scored))
	globalManager.comparablesReturned.Observe(float64(returned))
}

// RecordRankRejected records a request that failed before scoring.
func RecordRankRejected(outcome string) {
	globalManager.rankRequests.WithLabelValues(outcome).Inc()
}

// RecordOutliers adds n flags of kind.
func RecordOutliers(kind string, n int) {
	globalManager.outliersFlagged.WithLabelValues(kind).Add(float64(n))
}

// RecordScoreCache records cache hits and misses for one request.
func RecordScoreCache(hits, misses int) {
	globalManager.scoreCacheHits.Add(float64(hits))
	globalManager.scoreCacheMisses.Add(float64(misses))
}

// RecordJobSubmitted records a job submission result (accepted, duplicate, rejected).
func RecordJobSubmitted(result string) {
	globalManager.jobsSubmitted.WithLabelValues(result).Inc()
}

// RecordJobFinished records a job reaching a terminal status.
func RecordJobFinished(status string) {
	globalManager.jobsFinished.WithLabelValues(status).Inc()
}

// UpdateQueueSize sets the queue backlog.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue fill ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueEnqueueError increments the rejected enqueue counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records one job's processing time.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordStoreQuery records a record store operation.
func RecordStoreQuery(driver, op string, latencyMs float64) {
	globalManager.storeQueryLatency.WithLabelValues(driver, op).Observe(latencyMs)
}

// UpdateStoreRecords sets the number of stored records.
func UpdateStoreRecords(count int) {
	globalManager.storeRecords.Set(float64(count))
}

// RecordRecordsImported adds n imported records.
func RecordRecordsImported(n int) {
	globalManager.recordsImported.Add(float64(n))
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint counts an HTTP error.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByComponent counts an error raised by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap memory in use.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records a GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry the service metrics live on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
