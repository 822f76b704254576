// Package metrics provides Prometheus metrics for the PromptMap API
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "promptmap"

// Generation modes and outcomes used as label values.
const (
	ModeBuffered  = "buffered"
	ModeStreaming = "streaming"

	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeInvalid   = "invalid"
	OutcomeCancelled = "cancelled"
)

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	registry *prometheus.Registry

	GenerationsTotal      *prometheus.CounterVec
	GenerationDuration    *prometheus.HistogramVec
	TopicShiftChecksTotal *prometheus.CounterVec
	RateLimitedTotal      *prometheus.CounterVec
	StreamChunksTotal     prometheus.Counter
	ThreadsCreatedTotal   prometheus.Counter
	AnonymousRecordsTotal *prometheus.CounterVec
	WorkspaceConnections  prometheus.Gauge
}

// NewMetrics creates a dedicated registry with the Go and process collectors
// and registers all service metrics on it.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		GenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Total number of mind map generations",
			},
			[]string{"mode", "outcome"},
		),
		GenerationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Duration of mind map generations in seconds",
				Buckets:   []float64{.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			},
			[]string{"mode"},
		),
		TopicShiftChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "topic_shift_checks_total",
				Help:      "Topic shift classifications by result",
			},
			[]string{"result"},
		),
		RateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_requests_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
		StreamChunksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_chunks_total",
				Help:      "Text chunks relayed to streaming clients",
			},
		),
		ThreadsCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "threads_created_total",
				Help:      "Threads persisted for signed-in users",
			},
		),
		AnonymousRecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "anonymous_records_total",
				Help:      "Anonymous analytics records by status",
			},
			[]string{"status"},
		),
		WorkspaceConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "workspace_connections",
				Help:      "Open workspace websocket connections",
			},
		),
	}
}

// RecordGeneration records a finished generation with its outcome
func (m *Metrics) RecordGeneration(mode, outcome string, duration time.Duration) {
	m.GenerationsTotal.WithLabelValues(mode, outcome).Inc()
	m.GenerationDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordTopicShift records a classifier verdict ("shift", "continue" or "failed")
func (m *Metrics) RecordTopicShift(result string) {
	m.TopicShiftChecksTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
