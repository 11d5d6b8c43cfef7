// Package metrics provides Prometheus metrics for the precinct playback service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the precinct service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Feed Ingest Metrics - What arrives from the simulation feed
	framesIngested    prometheus.Counter
	framesOutOfOrder  prometheus.Counter
	framesReplaced    prometheus.Counter
	frameDecodeErrors prometheus.Counter
	feedReconnects    prometheus.Counter
	feedConnected     prometheus.Gauge

	// Frame Buffer Metrics - Timeline coverage
	bufferFrames      prometheus.Gauge
	bufferCounties    prometheus.Gauge
	bufferSpanSeconds prometheus.Gauge

	// Playback Metrics - Timeline controller behavior
	playbackTicks   prometheus.Counter
	playbackSeeks   prometheus.Counter
	seeksCoalesced  prometheus.Counter
	replaysTotal    prometheus.Counter
	replayDuration  prometheus.Histogram
	cursorSeconds   prometheus.Gauge
	playbackSpeed   prometheus.Gauge
	playbackRunning prometheus.Gauge

	// Aggregation Metrics - Rollup computation cost
	aggregateRecomputes prometheus.Counter
	aggregateMemoHits   prometheus.Counter
	aggregateLatency    prometheus.Histogram
	countiesTracked     prometheus.Gauge
	statesTracked       prometheus.Gauge

	// County Store Metrics - Authoritative state quality
	storeApplyLatency    prometheus.Histogram
	storeQueryLatency    prometheus.Histogram
	unknownCounties      prometheus.Counter
	invariantCorrections prometheus.Counter
	overridesActive      prometheus.Gauge
	overrideRejections   prometheus.Counter

	// Newsroom Metrics - Editorial event generation
	newsroomEvents     *prometheus.CounterVec
	newsroomSuppressed prometheus.Counter

	// Stream Metrics - WebSocket fanout to dashboards
	streamClients    prometheus.Gauge
	streamBroadcasts prometheus.Counter
	streamDropped    prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Enhanced Error Metrics - Detailed error tracking
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

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "precinct",
		subsystem:        "playback",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Feed Ingest Metrics - Everything the feed hands us before the buffer
	m.framesIngested = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_ingested_total",
		Help:      "Total number of simulation frames accepted into the buffer",
	})

	m.framesOutOfOrder = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_out_of_order_total",
		Help:      "Total number of frames that arrived behind the buffer tail (indicates feed jitter)",
	})

	m.framesReplaced = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_replaced_total",
		Help:      "Total number of county snapshots replaced by a later arrival with the same timestamp",
	})

	m.frameDecodeErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frame_decode_errors_total",
		Help:      "Total number of feed payloads that could not be decoded (indicates data quality)",
	})

	m.feedReconnects = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "feed_reconnects_total",
		Help:      "Total number of feed reconnection attempts",
	})

	m.feedConnected = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "feed_connected",
		Help:      "Whether the feed connection is currently established (1) or not (0)",
	})

	// Frame Buffer Metrics - Coverage of the simulated night
	m.bufferFrames = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "buffer_frames",
		Help:      "Current number of frames held in the timeline buffer",
	})

	m.bufferCounties = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "buffer_counties",
		Help:      "Number of distinct counties with at least one buffered snapshot",
	})

	m.bufferSpanSeconds = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "buffer_span_seconds",
		Help:      "Simulation seconds covered by the buffer, from first to last frame",
	})

	// Playback Metrics - Cursor movement and replay cost
	m.playbackTicks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ticks_total",
		Help:      "Total number of playback clock ticks processed",
	})

	m.playbackSeeks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "seeks_total",
		Help:      "Total number of seek requests accepted",
	})

	m.seeksCoalesced = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "seeks_coalesced_total",
		Help:      "Total number of seek requests superseded before their replay began",
	})

	m.replaysTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "replays_total",
		Help:      "Total number of full state replays from the buffer",
	})

	m.replayDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "replay_duration_milliseconds",
		Help:      "Histogram of full replay duration in milliseconds (core seek latency)",
		Buckets:   m.histogramBuckets,
	})

	m.cursorSeconds = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cursor_seconds",
		Help:      "Current playback cursor position in simulation seconds",
	})

	m.playbackSpeed = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "speed_multiplier",
		Help:      "Current playback speed multiplier",
	})

	m.playbackRunning = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "running",
		Help:      "Whether playback is currently advancing (1) or paused (0)",
	})

	// Aggregation Metrics - Rollup recomputation behavior
	m.aggregateRecomputes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregate_recomputes_total",
		Help:      "Total number of full rollup recomputations",
	})

	m.aggregateMemoHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregate_memo_hits_total",
		Help:      "Total number of rollup requests served from the memoized snapshot",
	})

	m.aggregateLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregate_latency_milliseconds",
		Help:      "Histogram of rollup computation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.countiesTracked = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "counties_tracked",
		Help:      "Total number of counties in the authoritative store (business scale)",
	})

	m.statesTracked = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "states_tracked",
		Help:      "Total number of states with at least one tracked county",
	})

	// County Store Metrics - Apply/query cost and data quality
	m.storeApplyLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_apply_latency_milliseconds",
		Help:      "Histogram of county snapshot apply latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_query_latency_milliseconds",
		Help:      "Histogram of county query latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.unknownCounties = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "unknown_counties_total",
		Help:      "Total number of updates for counties absent from the loaded scenario",
	})

	m.invariantCorrections = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "invariant_corrections_total",
		Help:      "Total number of county snapshots clamped to restore vote conservation",
	})

	m.overridesActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "overrides_active",
		Help:      "Current number of counties carrying a manual override",
	})

	m.overrideRejections = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "override_rejections_total",
		Help:      "Total number of override requests rejected by validation",
	})

	// Newsroom Metrics - Editorial feed volume by kind and severity
	m.newsroomEvents = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "newsroom_events_total",
			Help:      "Total number of newsroom events emitted by kind and severity",
		},
		[]string{"kind", "severity"},
	)

	m.newsroomSuppressed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "newsroom_suppressed_total",
		Help:      "Total number of newsroom events suppressed as duplicates within the window",
	})

	// Stream Metrics - Browser fanout health
	m.streamClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_clients",
		Help:      "Current number of connected stream clients",
	})

	m.streamBroadcasts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_broadcasts_total",
		Help:      "Total number of snapshots broadcast to stream clients",
	})

	m.streamDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_dropped_total",
		Help:      "Total number of stream messages dropped due to slow clients",
	})

	// HTTP Performance Metrics - User experience indicators
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
			Help:      "HTTP request duration in milliseconds (user experience)",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Enhanced Error Metrics - Detailed error tracking
	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component and error type",
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_type_total",
			Help:      "Total number of errors by error type and severity",
		},
		[]string{"error_type", "severity"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "Total number of errors by endpoint and method",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "error_latency_milliseconds",
			Help:      "Latency of operations that resulted in errors",
			Buckets:   m.histogramBuckets,
		},
		[]string{"component", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordFrameIngested increments the ingested frames counter.
func RecordFrameIngested() {
	globalManager.framesIngested.Inc()
}

// RecordFrameOutOfOrder increments the out-of-order frames counter.
func RecordFrameOutOfOrder() {
	globalManager.framesOutOfOrder.Inc()
}

// RecordFrameReplaced increments the replaced snapshots counter.
func RecordFrameReplaced() {
	globalManager.framesReplaced.Inc()
}

// RecordFrameDecodeError increments the decode error counter.
func RecordFrameDecodeError() {
	globalManager.frameDecodeErrors.Inc()
}

// RecordFeedReconnect increments the feed reconnect counter.
func RecordFeedReconnect() {
	globalManager.feedReconnects.Inc()
}

// UpdateFeedConnected sets whether the feed connection is established.
func UpdateFeedConnected(connected bool) {
	if connected {
		globalManager.feedConnected.Set(1)
	} else {
		globalManager.feedConnected.Set(0)
	}
}

// Frame Buffer Metrics Functions.

// UpdateBufferFrames sets the current buffered frame count.
func UpdateBufferFrames(count int) {
	globalManager.bufferFrames.Set(float64(count))
}

// UpdateBufferCounties sets the number of counties with buffered snapshots.
func UpdateBufferCounties(count int) {
	globalManager.bufferCounties.Set(float64(count))
}

// UpdateBufferSpanSeconds sets the simulation span covered by the buffer.
func UpdateBufferSpanSeconds(span float64) {
	globalManager.bufferSpanSeconds.Set(span)
}

// Playback Metrics Functions.

// RecordPlaybackTick increments the playback tick counter.
func RecordPlaybackTick() {
	globalManager.playbackTicks.Inc()
}

// RecordPlaybackSeek increments the seek counter.
func RecordPlaybackSeek() {
	globalManager.playbackSeeks.Inc()
}

// RecordSeekCoalesced increments the coalesced seek counter.
func RecordSeekCoalesced() {
	globalManager.seeksCoalesced.Inc()
}

// RecordReplay increments the replay counter.
func RecordReplay() {
	globalManager.replaysTotal.Inc()
}

// RecordReplayDuration records a full replay duration in milliseconds.
func RecordReplayDuration(latencyMs float64) {
	globalManager.replayDuration.Observe(latencyMs)
}

// UpdateCursorSeconds sets the current playback cursor position.
func UpdateCursorSeconds(seconds float64) {
	globalManager.cursorSeconds.Set(seconds)
}

// UpdatePlaybackSpeed sets the current speed multiplier.
func UpdatePlaybackSpeed(speed float64) {
	globalManager.playbackSpeed.Set(speed)
}

// UpdatePlaybackRunning sets whether playback is advancing.
func UpdatePlaybackRunning(running bool) {
	if running {
		globalManager.playbackRunning.Set(1)
	} else {
		globalManager.playbackRunning.Set(0)
	}
}

// Aggregation Metrics Functions.

// RecordAggregateRecompute increments the rollup recomputation counter.
func RecordAggregateRecompute() {
	globalManager.aggregateRecomputes.Inc()
}

// RecordAggregateMemoHit increments the memoized rollup hit counter.
func RecordAggregateMemoHit() {
	globalManager.aggregateMemoHits.Inc()
}

// RecordAggregateLatency records rollup computation latency in milliseconds.
func RecordAggregateLatency(latencyMs float64) {
	globalManager.aggregateLatency.Observe(latencyMs)
}

// UpdateCountiesTracked sets the total tracked county count.
func UpdateCountiesTracked(count int) {
	globalManager.countiesTracked.Set(float64(count))
}

// UpdateStatesTracked sets the total tracked state count.
func UpdateStatesTracked(count int) {
	globalManager.statesTracked.Set(float64(count))
}

// County Store Metrics Functions.

// RecordStoreApplyLatency records county apply latency in milliseconds.
func RecordStoreApplyLatency(latencyMs float64) {
	globalManager.storeApplyLatency.Observe(latencyMs)
}

// RecordStoreQueryLatency records county query latency in milliseconds.
func RecordStoreQueryLatency(latencyMs float64) {
	globalManager.storeQueryLatency.Observe(latencyMs)
}

// RecordUnknownCounty increments the unknown county counter.
func RecordUnknownCounty() {
	globalManager.unknownCounties.Inc()
}

// RecordInvariantCorrection increments the invariant correction counter.
func RecordInvariantCorrection() {
	globalManager.invariantCorrections.Inc()
}

// UpdateOverridesActive sets the current active override count.
func UpdateOverridesActive(count int) {
	globalManager.overridesActive.Set(float64(count))
}

// RecordOverrideRejection increments the override rejection counter.
func RecordOverrideRejection() {
	globalManager.overrideRejections.Inc()
}

// Newsroom Metrics Functions.

// RecordNewsroomEvent records an emitted newsroom event by kind and severity.
func RecordNewsroomEvent(kind, severity string) {
	globalManager.newsroomEvents.WithLabelValues(kind, severity).Inc()
}

// RecordNewsroomSuppressed increments the suppressed event counter.
func RecordNewsroomSuppressed() {
	globalManager.newsroomSuppressed.Inc()
}

// Stream Metrics Functions.

// UpdateStreamClients sets the current connected stream client count.
func UpdateStreamClients(count int) {
	globalManager.streamClients.Set(float64(count))
}

// RecordStreamBroadcast increments the broadcast counter.
func RecordStreamBroadcast() {
	globalManager.streamBroadcasts.Inc()
}

// RecordStreamDropped increments the dropped message counter.
func RecordStreamDropped() {
	globalManager.streamDropped.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Enhanced Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
