// Package metrics provides Prometheus metrics for the score stream service.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Schema registration states reported by the schema_ready gauge.
const (
	SchemaStatePending  = 0
	SchemaStateReady    = 1
	SchemaStateConflict = -1
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          atomic.Bool
	refreshInterval  atomic.Int64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Publish path
	eventsPublished     prometheus.Counter
	publishErrors       *prometheus.CounterVec
	publishLatency      prometheus.Histogram
	idempotentReplays   prometheus.Counter
	idempotencyEntries  prometheus.Gauge
	confirmationLatency prometheus.Histogram

	// Read path
	fetchLatency    prometheus.Histogram
	fetchRecords    prometheus.Gauge
	fetchPages      prometheus.Counter
	decodeSkipped   prometheus.Counter
	fetchErrors     prometheus.Counter
	analysisPlayers prometheus.Gauge

	// Generation backend
	generationLatency  prometheus.Histogram
	generationErrors   prometheus.Counter
	summariesDegraded  prometheus.Counter
	summariesTruncated prometheus.Counter

	// Schema registry
	schemaState           prometheus.Gauge
	schemaRegistrations   prometheus.Counter
	schemaRegistrationDur prometheus.Histogram

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "scores",
		subsystem:        "stream",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	m.enabled.Store(true)
	m.refreshInterval.Store(int64(defaultRefreshInterval))

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// Enabled reports whether the manager records observations.
func (m *Manager) Enabled() bool { return m.enabled.Load() }

// RefreshInterval is how often polled gauges should be refreshed.
func (m *Manager) RefreshInterval() time.Duration {
	return time.Duration(m.refreshInterval.Load())
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		Buckets: m.histogramBuckets, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		Buckets: m.histogramBuckets, ConstLabels: m.customLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.eventsPublished = m.counter("events_published_total", "Total number of score events durably published")
	m.publishErrors = m.counterVec("publish_errors_total", "Publish failures by error kind", "kind")
	m.publishLatency = m.histogram("publish_latency_milliseconds", "End-to-end publish latency in milliseconds")
	m.idempotentReplays = m.counter("publish_idempotent_replays_total", "Publishes answered from the idempotency store")
	m.idempotencyEntries = m.gauge("idempotency_entries", "Record ids tracked by the in-memory idempotency store")
	m.confirmationLatency = m.histogram("confirmation_latency_milliseconds", "Time spent waiting for backend confirmation")

	m.fetchLatency = m.histogram("fetch_latency_milliseconds", "Latency of fetching a full publisher corpus")
	m.fetchRecords = m.gauge("fetch_records", "Records returned by the last fetch")
	m.fetchPages = m.counter("fetch_pages_total", "Pages read from the stream backend")
	m.decodeSkipped = m.counter("decode_skipped_total", "Stored records skipped because they failed to decode")
	m.fetchErrors = m.counter("fetch_errors_total", "Fetches that failed because the backend was unreachable")
	m.analysisPlayers = m.gauge("analysis_players", "Distinct players seen by the last analysis")

	m.generationLatency = m.histogram("generation_latency_milliseconds", "Latency of language generation calls")
	m.generationErrors = m.counter("generation_errors_total", "Generation calls that failed or timed out")
	m.summariesDegraded = m.counter("summaries_degraded_total", "Analyses answered with a placeholder summary")
	m.summariesTruncated = m.counter("summaries_truncated_total", "Generated summaries cut at the word cap")

	m.schemaState = m.gauge("schema_state", "Schema registration state: 0 pending, 1 ready, -1 conflict")
	m.schemaRegistrations = m.counter("schema_registration_attempts_total", "Schema registration attempts against the backend")
	m.schemaRegistrationDur = m.histogram("schema_registration_milliseconds", "Duration of schema registration")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of operations that ended in error", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause in milliseconds")
}

// Configure applies the runtime switches of the global manager. Only
// WithMetricsEnabled and WithRefreshInterval take effect after startup.
func Configure(opts ...Option) {
	m := &Manager{}
	m.enabled.Store(globalManager.Enabled())
	m.refreshInterval.Store(int64(globalManager.RefreshInterval()))
	for _, opt := range opts {
		opt(m)
	}
	globalManager.enabled.Store(m.Enabled())
	globalManager.refreshInterval.Store(int64(m.RefreshInterval()))
}

// Enabled reports whether the package level helpers record.
func Enabled() bool { return globalManager.Enabled() }

// RefreshInterval returns the global refresh interval for polled gauges.
func RefreshInterval() time.Duration { return globalManager.RefreshInterval() }

func recording() bool { return globalManager.enabled.Load() }

// Publish path.

// RecordEventPublished increments the published events counter.
func RecordEventPublished() {
	if !recording() {
		return
	}
	globalManager.eventsPublished.Inc()
}

// RecordPublishError records a publish failure of the given kind.
func RecordPublishError(kind string) {
	if !recording() {
		return
	}
	globalManager.publishErrors.WithLabelValues(kind).Inc()
}

// RecordPublishLatency records publish latency in milliseconds.
func RecordPublishLatency(latencyMs float64) {
	if !recording() {
		return
	}
	globalManager.publishLatency.Observe(latencyMs)
}

// RecordIdempotentReplay counts a publish served from the idempotency store.
func RecordIdempotentReplay() {
	if !recording() {
		return
	}
	globalManager.idempotentReplays.Inc()
}

// UpdateIdempotencyEntries sets the number of tracked record ids.
func UpdateIdempotencyEntries(n int64) {
	if !recording() {
		return
	}
	globalManager.idempotencyEntries.Set(float64(n))
}

// RecordConfirmationLatency records backend confirmation wait time.
func RecordConfirmationLatency(latencyMs float64) {
	if !recording() {
		return
	}
	globalManager.confirmationLatency.Observe(latencyMs)
}

// Read path.

// RecordFetch records a completed fetch.
func RecordFetch(latencyMs float64, records, pages int) {
	if !recording() {
		return
	}
	globalManager.fetchLatency.Observe(latencyMs)
	globalManager.fetchRecords.Set(float64(records))
	globalManager.fetchPages.Add(float64(pages))
}

// RecordDecodeSkipped adds n skipped records.
func RecordDecodeSkipped(n int) {
	if !recording() {
		return
	}
	if n > 0 {
		globalManager.decodeSkipped.Add(float64(n))
	}
}

// RecordFetchError increments the fetch error counter.
func RecordFetchError() {
	if !recording() {
		return
	}
	globalManager.fetchErrors.Inc()
}

// UpdateAnalysisPlayers sets the distinct player count of the last analysis.
func UpdateAnalysisPlayers(n int) {
	if !recording() {
		return
	}
	globalManager.analysisPlayers.Set(float64(n))
}

// Generation.

// RecordGenerationLatency records generation latency in milliseconds.
func RecordGenerationLatency(latencyMs float64) {
	if !recording() {
		return
	}
	globalManager.generationLatency.Observe(latencyMs)
}

// RecordGenerationError increments the generation error counter.
func RecordGenerationError() {
	if !recording() {
		return
	}
	globalManager.generationErrors.Inc()
}

// RecordSummaryDegraded counts a placeholder summary.
func RecordSummaryDegraded() {
	if !recording() {
		return
	}
	globalManager.summariesDegraded.Inc()
}

// RecordSummaryTruncated counts a summary cut at the word cap.
func RecordSummaryTruncated() {
	if !recording() {
		return
	}
	globalManager.summariesTruncated.Inc()
}

// Schema registry.

// UpdateSchemaState sets the schema registration state gauge.
func UpdateSchemaState(state int) {
	if !recording() {
		return
	}
	globalManager.schemaState.Set(float64(state))
}

// RecordSchemaRegistration records one registration attempt and its duration.
func RecordSchemaRegistration(latencyMs float64) {
	if !recording() {
		return
	}
	globalManager.schemaRegistrations.Inc()
	globalManager.schemaRegistrationDur.Observe(latencyMs)
}

// HTTP.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !recording() {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !recording() {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if !recording() {
		return
	}
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	if !recording() {
		return
	}
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !recording() {
		return
	}
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	if !recording() {
		return
	}
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if !recording() {
		return
	}
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	if !recording() {
		return
	}
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	if !recording() {
		return
	}
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
