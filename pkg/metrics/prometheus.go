// Package metrics provides Prometheus metrics for the judgeflow allocation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Generation modes and outcomes used as label values.
const (
	ModeExclusive = "exclusive"
	ModeOverlap   = "overlap"

	OutcomeCreated  = "created"  // every requested judge got a block
	OutcomePartial  = "partial"  // some judges failed
	OutcomeNone     = "none"     // nothing could be created
	OutcomeConflict = "conflict" // commit rejected as stale
	OutcomeError    = "error"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Allocation
	generations        *prometheus.CounterVec
	generationLatency  *prometheus.HistogramVec
	assignmentsCreated prometheus.Counter
	judgeFailures      *prometheus.CounterVec
	reversedBlocks     prometheus.Counter
	relaxedWindows     prometheus.Counter
	commitConflicts    prometheus.Counter
	duplicateRequests  prometheus.Counter

	// Assignment lifecycle
	assignmentsSubmitted prometheus.Counter
	assignmentsCancelled prometheus.Counter
	storeLatency         *prometheus.HistogramVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors *prometheus.CounterVec

	// Workers
	workerCount   prometheus.Gauge
	shardInflight *prometheus.GaugeVec

	// Notifications
	notificationsPublished prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "judgeflow",
		subsystem:        "allocation",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.generations = auto.NewCounterVec(
		m.counterOpts("generations_total", "Generations by allocation mode and outcome"),
		[]string{"mode", "outcome"},
	)
	m.generationLatency = auto.NewHistogramVec(
		m.histogramOpts("generation_latency_milliseconds", "Snapshot, plan and commit latency in milliseconds"),
		[]string{"mode"},
	)
	m.assignmentsCreated = auto.NewCounter(m.counterOpts("assignments_created_total", "Assignments created by committed plans"))
	m.judgeFailures = auto.NewCounterVec(
		m.counterOpts("judge_failures_total", "Judges that received no block, by failure kind"),
		[]string{"kind"},
	)
	m.reversedBlocks = auto.NewCounter(m.counterOpts("reversed_blocks_total", "Blocks emitted in reverse order because an identical set was already assigned"))
	m.relaxedWindows = auto.NewCounter(m.counterOpts("relaxed_windows_total", "Blocks picked after dropping the closeness cap"))
	m.commitConflicts = auto.NewCounter(m.counterOpts("commit_conflicts_total", "Plans rejected at commit because the floor changed"))
	m.duplicateRequests = auto.NewCounter(m.counterOpts("duplicate_requests_total", "Generate requests skipped because their request id was already seen"))

	m.assignmentsSubmitted = auto.NewCounter(m.counterOpts("assignments_submitted_total", "Assignments submitted with scores"))
	m.assignmentsCancelled = auto.NewCounter(m.counterOpts("assignments_cancelled_total", "Unsubmitted assignments cancelled"))
	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_latency_milliseconds", "Store operation latency in milliseconds"),
		[]string{"operation"},
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Generation jobs waiting across all shards"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Total generation job capacity across all shards"))
	m.queueEnqueueErrors = auto.NewCounterVec(
		m.counterOpts("queue_enqueue_errors_total", "Generation jobs refused by a shard queue"),
		[]string{"reason"},
	)

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Floor shards running a generation loop"))
	m.shardInflight = auto.NewGaugeVec(
		m.gaugeOpts("shard_inflight", "Generation jobs currently executing per shard"),
		[]string{"shard"},
	)

	m.notificationsPublished = auto.NewCounter(m.counterOpts("notifications_published_total", "Plan notifications published"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap bytes in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Current goroutine count"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_milliseconds", "Most recent GC pause in milliseconds"))
}

// Mode returns the mode label for an overlap flag.
func Mode(overlap bool) string {
	if overlap {
		return ModeOverlap
	}
	return ModeExclusive
}

// Allocation

// RecordGeneration counts one finished generation.
func RecordGeneration(mode, outcome string) {
	globalManager.generations.WithLabelValues(mode, outcome).Inc()
}

// RecordGenerationLatency observes end-to-end generation latency.
func RecordGenerationLatency(mode string, latencyMs float64) {
	globalManager.generationLatency.WithLabelValues(mode).Observe(latencyMs)
}

// RecordAssignmentsCreated adds n committed assignments.
func RecordAssignmentsCreated(n int) {
	if n > 0 {
		globalManager.assignmentsCreated.Add(float64(n))
	}
}

// RecordJudgeFailure counts a judge left without a block.
func RecordJudgeFailure(kind string) {
	globalManager.judgeFailures.WithLabelValues(kind).Inc()
}

// RecordReversedBlocks adds n reversed blocks.
func RecordReversedBlocks(n int) {
	if n > 0 {
		globalManager.reversedBlocks.Add(float64(n))
	}
}

// RecordRelaxedWindows adds n blocks chosen without the closeness cap.
func RecordRelaxedWindows(n int) {
	if n > 0 {
		globalManager.relaxedWindows.Add(float64(n))
	}
}

// RecordCommitConflict counts a plan rejected as stale.
func RecordCommitConflict() {
	globalManager.commitConflicts.Inc()
}

// RecordDuplicateRequest counts a skipped retry.
func RecordDuplicateRequest() {
	globalManager.duplicateRequests.Inc()
}

// Assignment lifecycle

// RecordAssignmentSubmitted counts a submitted assignment.
func RecordAssignmentSubmitted() {
	globalManager.assignmentsSubmitted.Inc()
}

// RecordAssignmentCancelled counts a cancelled assignment.
func RecordAssignmentCancelled() {
	globalManager.assignmentsCancelled.Inc()
}

// RecordStoreLatency observes a store call.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// Queue

// UpdateQueueSize sets the number of waiting jobs.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the total queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError counts a refused job.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// Workers

// UpdateWorkerCount sets the number of running shards.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateShardInflight sets in-flight jobs for one shard.
func UpdateShardInflight(shard string, n int) {
	globalManager.shardInflight.WithLabelValues(shard).Set(float64(n))
}

// Notifications

// RecordNotificationPublished counts a published plan notification.
func RecordNotificationPublished() {
	globalManager.notificationsPublished.Inc()
}

// HTTP

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors

// RecordErrorByComponent counts an error raised by a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System

// UpdateSystemMemoryUsage sets heap bytes in use.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime observes the last GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry the global metrics are registered on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
