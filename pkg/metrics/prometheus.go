// Package metrics provides Prometheus metrics for the minirank service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the minirank service.
type Manager struct {
	namespace      string
	subsystem      string
	runBuckets     []float64
	latencyBuckets []float64
	constLabels    map[string]string
	registry       prometheus.Registerer

	// Window runs
	windowDaysProcessed *prometheus.CounterVec
	windowDaysSkipped   *prometheus.CounterVec
	windowRuns          *prometheus.CounterVec
	windowRunDuration   *prometheus.HistogramVec
	windowPlayers       *prometheus.GaugeVec
	lastUpdateUnix      prometheus.Gauge

	// Ingest
	fetchAttempts   *prometheus.CounterVec
	resultsIngested prometheus.Counter

	// Storage and cache
	storeLatency       *prometheus.HistogramVec
	cachePublishErrors prometheus.Counter
	cacheReads         *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "minirank",
		subsystem:      "leaderboard",
		runBuckets:     defaultRunBuckets,
		latencyBuckets: defaultLatencyBuckets,
		registry:       prometheus.DefaultRegisterer,
	}
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

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.windowDaysProcessed = auto.NewCounterVec(
		m.counterOpts("window_days_processed_total", "Days folded into a window run"),
		[]string{"window"},
	)
	m.windowDaysSkipped = auto.NewCounterVec(
		m.counterOpts("window_days_skipped_total", "Days skipped for an empty leaderboard"),
		[]string{"window"},
	)
	m.windowRuns = auto.NewCounterVec(
		m.counterOpts("window_runs_total", "Window runs by outcome"),
		[]string{"window", "status"},
	)
	m.windowRunDuration = auto.NewHistogramVec(
		m.histogramOpts("window_run_duration_seconds", "Wall time of a window run", m.runBuckets),
		[]string{"window"},
	)
	m.windowPlayers = auto.NewGaugeVec(
		m.gaugeOpts("window_players", "Rows produced by the last window run"),
		[]string{"window"},
	)
	m.lastUpdateUnix = auto.NewGauge(
		m.gaugeOpts("last_update_unix", "Unix time of the last saved update"),
	)

	m.fetchAttempts = auto.NewCounterVec(
		m.counterOpts("fetch_attempts_total", "Upstream leaderboard fetch attempts by outcome"),
		[]string{"outcome"},
	)
	m.resultsIngested = auto.NewCounter(
		m.counterOpts("results_ingested_total", "Daily results written by ingest"),
	)

	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_latency_milliseconds", "Store operation latency in milliseconds", m.latencyBuckets),
		[]string{"operation"},
	)
	m.cachePublishErrors = auto.NewCounter(
		m.counterOpts("cache_publish_errors_total", "Failed leaderboard publishes to the cache"),
	)
	m.cacheReads = auto.NewCounterVec(
		m.counterOpts("cache_reads_total", "Leaderboard reads by source"),
		[]string{"source"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.latencyBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
}

// RecordDayProcessed counts a day folded into a window.
func RecordDayProcessed(window string) {
	globalManager.windowDaysProcessed.WithLabelValues(window).Inc()
}

// RecordDaySkipped counts a day skipped for an empty leaderboard.
func RecordDaySkipped(window string) {
	globalManager.windowDaysSkipped.WithLabelValues(window).Inc()
}

// RecordWindowRun records the outcome and duration of a window run.
func RecordWindowRun(window, status string, d time.Duration) {
	globalManager.windowRuns.WithLabelValues(window, status).Inc()
	globalManager.windowRunDuration.WithLabelValues(window).Observe(d.Seconds())
}

// UpdateWindowPlayers sets the row count of the last run of a window.
func UpdateWindowPlayers(window string, n int) {
	globalManager.windowPlayers.WithLabelValues(window).Set(float64(n))
}

// UpdateLastUpdate marks the time of the last saved update.
func UpdateLastUpdate(t time.Time) {
	globalManager.lastUpdateUnix.Set(float64(t.Unix()))
}

// RecordFetchAttempt counts one upstream fetch with its outcome.
func RecordFetchAttempt(outcome string) {
	globalManager.fetchAttempts.WithLabelValues(outcome).Inc()
}

// RecordResultsIngested counts results written by ingest.
func RecordResultsIngested(n int) {
	globalManager.resultsIngested.Add(float64(n))
}

// RecordStoreLatency records a store operation latency.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordCachePublishError counts a failed cache publish.
func RecordCachePublishError() {
	globalManager.cachePublishErrors.Inc()
}

// RecordCacheRead counts a leaderboard read served by source
// ("cache" or "store").
func RecordCacheRead(source string) {
	globalManager.cacheReads.WithLabelValues(source).Inc()
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

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
