// Package metrics provides Prometheus metrics for the bias audit service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns the Prometheus collectors of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Evaluation metrics
	evaluationsSubmitted prometheus.Counter
	evaluationsDuplicate prometheus.Counter
	evaluationsCompleted prometheus.Counter
	evaluationsFailed    prometheus.Counter
	evaluationDuration   prometheus.Histogram
	subgroupsEvaluated   prometheus.Counter
	subgroupsSkipped     prometheus.Counter
	recordsEvaluated     prometheus.Counter
	undefinedAUC         *prometheus.CounterVec

	// Queue and worker metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	workerCount        prometheus.Gauge

	// Report store metrics
	reportsStored prometheus.Gauge
	storeLatency  *prometheus.HistogramVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "biasaudit",
		subsystem:        "engine",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
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
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.evaluationsSubmitted = m.counter("evaluations_submitted_total", "Total number of evaluations accepted for processing")
	m.evaluationsDuplicate = m.counter("evaluations_duplicate_total", "Total number of resubmitted evaluations resolved to an existing report")
	m.evaluationsCompleted = m.counter("evaluations_completed_total", "Total number of evaluations that produced a report")
	m.evaluationsFailed = m.counter("evaluations_failed_total", "Total number of evaluations that failed")
	m.evaluationDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluation_duration_milliseconds",
		Help:      "Time spent computing one bias report in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.subgroupsEvaluated = m.counter("subgroups_evaluated_total", "Total number of subgroups evaluated")
	m.subgroupsSkipped = m.counter("subgroups_skipped_total", "Total number of subgroups skipped for being too small")
	m.recordsEvaluated = m.counter("records_evaluated_total", "Total number of records across evaluated datasets")
	m.undefinedAUC = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "undefined_auc_total",
			Help:      "Total number of undefined AUC values by metric",
		},
		[]string{"metric"},
	)

	m.queueSize = m.gauge("queue_size", "Current size of the evaluation queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Total number of jobs enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Total number of jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")
	m.workerCount = m.gauge("worker_count", "Current number of evaluation workers")

	m.reportsStored = m.gauge("reports_stored", "Number of reports in the report store")
	m.storeLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "store_latency_milliseconds",
			Help:      "Report store operation latency in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"operation"},
	)

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordEvaluationSubmitted increments the submitted evaluations counter.
func RecordEvaluationSubmitted() {
	globalManager.evaluationsSubmitted.Inc()
}

// RecordEvaluationDuplicate increments the duplicate submissions counter.
func RecordEvaluationDuplicate() {
	globalManager.evaluationsDuplicate.Inc()
}

// RecordEvaluationCompleted counts a finished report and its size.
func RecordEvaluationCompleted(records, subgroups, skipped int, durationMs float64) {
	globalManager.evaluationsCompleted.Inc()
	globalManager.recordsEvaluated.Add(float64(records))
	globalManager.subgroupsEvaluated.Add(float64(subgroups))
	globalManager.subgroupsSkipped.Add(float64(skipped))
	globalManager.evaluationDuration.Observe(durationMs)
}

// RecordEvaluationFailed increments the failed evaluations counter.
func RecordEvaluationFailed() {
	globalManager.evaluationsFailed.Inc()
}

// RecordUndefinedAUC counts an undefined value of metric
// (subgroup_auc, bpsn_auc, bnsp_auc or overall_auc).
func RecordUndefinedAUC(metric string) {
	globalManager.undefinedAUC.WithLabelValues(metric).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
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

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateReportsStored sets the number of stored reports.
func UpdateReportsStored(count int) {
	globalManager.reportsStored.Set(float64(count))
}

// RecordStoreLatency records the latency of a report store operation.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
