// Package metrics exposes the Prometheus series of the trials service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "trials"
	subsystem = "attempts"

	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every series of the service.
type Manager struct {
	registry prometheus.Registerer

	// Ingestion
	attemptsSubmitted *prometheus.CounterVec
	ingestLatency     prometheus.Histogram
	uploadFailures    prometheus.Counter
	commitFailures    prometheus.Counter
	commitRetries     prometheus.Counter
	notifications     *prometheus.CounterVec

	// Reconciliation and review
	resultsApplied       *prometheus.CounterVec
	resultParseErrors    prometheus.Counter
	resultDuplicates     prometheus.Counter
	intakeMessages       *prometheus.CounterVec
	assessments          prometheus.Counter
	validationRejections *prometheus.CounterVec
	unresolvedAthletes   *prometheus.CounterVec

	// Store
	storeLatency *prometheus.HistogramVec

	// Result queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActive            prometheus.Gauge
	workerIdle              prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the package-level recorders

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out of /healthz

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates and registers every series.
func NewManager(opts ...Option) *Manager {
	m := &Manager{registry: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func counter(auto promauto.Factory, name, help string) prometheus.Counter {
	return auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	})
}

func counterVec(auto promauto.Factory, name, help string, labels ...string) *prometheus.CounterVec {
	return auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func gauge(auto promauto.Factory, name, help string) prometheus.Gauge {
	return auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	})
}

// histogram uses prometheus.DefBuckets when buckets is nil.
func histogram(auto promauto.Factory, name, help string, buckets []float64) prometheus.Histogram {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	return auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func histogramVec(auto promauto.Factory, name, help string, labels ...string) *prometheus.HistogramVec {
	return auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: prometheus.DefBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every series
	auto := promauto.With(m.registry)

	m.attemptsSubmitted = counterVec(auto, "submitted_total", "Attempts created by video ingestion", "test_type")
	m.ingestLatency = histogram(auto, "ingest_latency_milliseconds", "Upload plus record creation latency", nil)
	m.uploadFailures = counter(auto, "upload_failures_total", "Video uploads that failed (no record created)")
	m.commitFailures = counter(auto, "commit_failures_total", "Record creations that failed after a successful upload")
	m.commitRetries = counter(auto, "commit_retries_total", "Record creation retries with the same video URL")
	m.notifications = counterVec(auto, "notifications_total", "Analysis trigger deliveries", "driver", "outcome")

	m.resultsApplied = counterVec(auto, "results_applied_total", "Worker outcomes applied to attempts", "outcome")
	m.resultParseErrors = counter(auto, "result_parse_errors_total", "Stored results that could not be parsed on read")
	m.resultDuplicates = counter(auto, "result_duplicates_total", "Worker result messages dropped as duplicates")
	m.intakeMessages = counterVec(auto, "intake_messages_total", "Result messages read from the broker", "outcome")
	m.assessments = counter(auto, "assessments_total", "Reviewer assessments recorded")
	m.validationRejections = counterVec(auto, "validation_rejections_total", "Assessments rejected by validation", "field")
	m.unresolvedAthletes = counterVec(auto, "unresolved_athletes_total", "Listing rows dropped for a missing athlete", "listing")

	m.storeLatency = histogramVec(auto, "store_latency_milliseconds", "Record store operation latency", "driver", "op")

	m.queueSize = gauge(auto, "result_queue_size", "Result messages waiting to be applied")
	m.queueCapacity = gauge(auto, "result_queue_capacity", "Result queue capacity")
	m.queueUtilization = gauge(auto, "result_queue_utilization_ratio", "Result queue size over capacity")
	m.queueEnqueued = counter(auto, "result_queue_enqueued_total", "Result messages enqueued")
	m.queueDequeued = counter(auto, "result_queue_dequeued_total", "Result messages dequeued")
	m.queueEnqueueErrors = counter(auto, "result_queue_enqueue_errors_total", "Result messages refused by the queue")
	m.queueProcessingLatency = histogram(auto, "result_queue_enqueue_latency_milliseconds", "Enqueue latency",
		[]float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10})

	m.workerCount = gauge(auto, "worker_count", "Configured result workers")
	m.workerActive = gauge(auto, "worker_active_count", "Workers currently applying a result")
	m.workerIdle = gauge(auto, "worker_idle_count", "Workers waiting for a result")
	m.workerProcessingLatency = histogram(auto, "worker_processing_latency_milliseconds", "Time to apply one result", nil)
	m.workerErrors = counterVec(auto, "worker_errors_total", "Results a worker failed to apply", "error_type")

	m.httpRequests = counterVec(auto, "http_requests_total", "HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = histogramVec(auto, "http_request_duration_milliseconds", "HTTP request duration",
		"endpoint", "method", "status_code")

	m.errorsByComponent = counterVec(auto, "errors_by_component_total", "Errors by component", "component", "error_type")
	m.errorsByType = counterVec(auto, "errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorsByEndpoint = counterVec(auto, "errors_by_endpoint_total", "Errors by HTTP endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = gauge(auto, "system_memory_bytes", "Heap bytes in use")
	m.systemGoroutineCount = gauge(auto, "system_goroutines", "Live goroutines")
	m.systemGCPauseTime = histogram(auto, "system_gc_pause_milliseconds", "Most recent GC pause",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// GetRegistry returns the registry served on /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RefreshInterval is how often gauges sampled from the runtime are refreshed.
func RefreshInterval() time.Duration {
	return defaultRefreshInterval
}
