package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig controls whether metrics collection is enabled and under
// which Prometheus namespace the series are registered.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// SetDefaults fills unset fields with their defaults.
func (c *MetricsConfig) SetDefaults() {
	if c.Namespace == "" {
		c.Namespace = "memento"
	}
}

// Metrics holds the Prometheus series this runtime exposes: tool dispatch
// (C6), session management (C8), memory engine (C9), and reflection (C10).
type Metrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	// Tool (C6)
	toolCalls         *prometheus.CounterVec
	toolCallDuration  *prometheus.HistogramVec
	toolErrors        *prometheus.CounterVec
	toolNameConflicts prometheus.Counter

	// Session (C8)
	sessionsCreated      *prometheus.CounterVec
	sessionsActive       prometheus.Gauge
	sessionHistoryDedups prometheus.Counter
	sessionBatchDuration prometheus.Histogram

	// Memory (C9)
	memoryDecisions       *prometheus.CounterVec
	memoryEmbedDuration   prometheus.Histogram
	memoryEmbedDisabled   prometheus.Counter
	memoryPersistFailures *prometheus.CounterVec

	// Reflection (C10)
	reflectionTracesStored prometheus.Counter
	reflectionQuality      prometheus.Histogram
}

// NewMetrics builds a Metrics instance registered under its own Prometheus
// registry. Returns nil, nil when metrics are disabled so callers can treat
// a nil *Metrics as a safe no-op (all methods are nil-receiver safe).
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	m := &Metrics{config: cfg, registry: prometheus.NewRegistry()}
	m.initToolMetrics()
	m.initSessionMetrics()
	m.initMemoryMetrics()
	m.initReflectionMetrics()
	return m, nil
}

func (m *Metrics) initToolMetrics() {
	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "calls_total",
		Help: "Total number of tool invocations",
	}, []string{"tool_name"})

	m.toolCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "call_duration_seconds",
		Help: "Tool execution duration in seconds", Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
	}, []string{"tool_name"})

	m.toolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "errors_total",
		Help: "Total number of tool errors",
	}, []string{"tool_name", "error_type"})

	m.toolNameConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "name_conflicts_total",
		Help: "Total number of tool name conflicts resolved by the conflict policy",
	})

	m.registry.MustRegister(m.toolCalls, m.toolCallDuration, m.toolErrors, m.toolNameConflicts)
}

func (m *Metrics) initSessionMetrics() {
	m.sessionsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "session", Name: "created_total",
		Help: "Total number of sessions created",
	}, []string{"outcome"})

	m.sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.config.Namespace, Subsystem: "session", Name: "active",
		Help: "Number of sessions currently held in the manager's LRU cache",
	})

	m.sessionHistoryDedups = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "session", Name: "history_dedup_hits_total",
		Help: "Total number of concurrent history fetches served by an in-flight request instead of a new backend read",
	})

	m.sessionBatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "session", Name: "batch_metadata_duration_seconds",
		Help: "Duration of getBatchSessionMetadata calls", Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	m.registry.MustRegister(m.sessionsCreated, m.sessionsActive, m.sessionHistoryDedups, m.sessionBatchDuration)
}

func (m *Metrics) initMemoryMetrics() {
	m.memoryDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "memory", Name: "decisions_total",
		Help: "Total number of memory decisions by event type",
	}, []string{"event"})

	m.memoryEmbedDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "memory", Name: "embed_duration_seconds",
		Help: "Embedding call duration in seconds", Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	m.memoryEmbedDisabled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "memory", Name: "embeddings_disabled_total",
		Help: "Total number of times the embedding provider transitioned to the disabled state",
	})

	m.memoryPersistFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "memory", Name: "persist_failures_total",
		Help: "Total number of failed vector-store persistence calls by operation",
	}, []string{"operation"})

	m.registry.MustRegister(m.memoryDecisions, m.memoryEmbedDuration, m.memoryEmbedDisabled, m.memoryPersistFailures)
}

func (m *Metrics) initReflectionMetrics() {
	m.reflectionTracesStored = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "reflection", Name: "traces_stored_total",
		Help: "Total number of reasoning traces persisted",
	})

	m.reflectionQuality = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "reflection", Name: "quality_score",
		Help: "Quality score distribution of evaluated reasoning traces", Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	m.registry.MustRegister(m.reflectionTracesStored, m.reflectionQuality)
}

// Handler returns an http.Handler exposing the registered series. The core
// does not mount it anywhere; wiring a transport is out of scope.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordToolCall(toolName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(toolName).Inc()
	m.toolCallDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

func (m *Metrics) RecordToolError(toolName, errorType string) {
	if m == nil {
		return
	}
	m.toolErrors.WithLabelValues(toolName, errorType).Inc()
}

func (m *Metrics) RecordToolNameConflict() {
	if m == nil {
		return
	}
	m.toolNameConflicts.Inc()
}

func (m *Metrics) RecordSessionCreated(outcome string) {
	if m == nil {
		return
	}
	m.sessionsCreated.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetSessionsActive(count int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(count))
}

func (m *Metrics) RecordHistoryDedupHit() {
	if m == nil {
		return
	}
	m.sessionHistoryDedups.Inc()
}

func (m *Metrics) RecordBatchMetadataDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.sessionBatchDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordMemoryDecision(event string) {
	if m == nil {
		return
	}
	m.memoryDecisions.WithLabelValues(event).Inc()
}

func (m *Metrics) RecordEmbedDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.memoryEmbedDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordEmbeddingsDisabled() {
	if m == nil {
		return
	}
	m.memoryEmbedDisabled.Inc()
}

func (m *Metrics) RecordMemoryPersistFailure(operation string) {
	if m == nil {
		return
	}
	m.memoryPersistFailures.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordReflectionTraceStored(quality float64) {
	if m == nil {
		return
	}
	m.reflectionTracesStored.Inc()
	m.reflectionQuality.Observe(quality)
}
