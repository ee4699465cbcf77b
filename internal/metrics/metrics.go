package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Router metrics
	MessagesRoutedTotal          *prometheus.CounterVec
	ClassificationFallbacksTotal *prometheus.CounterVec
	DispatchErrorsTotal          *prometheus.CounterVec

	// Agent metrics
	AgentGenerationsTotal   *prometheus.CounterVec
	AgentGenerationDuration *prometheus.HistogramVec

	// Loop metrics
	PollCyclesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		// Router metrics
		MessagesRoutedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messages_routed_total",
				Help: "Total number of messages routed to an agent inbox",
			},
			[]string{"intent", "agent"},
		),
		ClassificationFallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classification_fallbacks_total",
				Help: "Total number of classifications that used the fallback intent",
			},
			[]string{"reason"},
		),
		DispatchErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_errors_total",
				Help: "Total number of routing attempts that produced no envelope",
			},
			[]string{"reason"},
		),

		// Agent metrics
		AgentGenerationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_generations_total",
				Help: "Total number of agent generations",
			},
			[]string{"agent_id", "status"},
		),
		AgentGenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_generation_duration_seconds",
				Help:    "Duration of agent generations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent_id"},
		),

		// Loop metrics
		PollCyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poll_cycles_total",
				Help: "Total number of poll cycles by loop and outcome",
			},
			[]string{"loop", "outcome"},
		),
	}

	m.registry.MustRegister(
		m.MessagesRoutedTotal,
		m.ClassificationFallbacksTotal,
		m.DispatchErrorsTotal,
		m.AgentGenerationsTotal,
		m.AgentGenerationDuration,
		m.PollCyclesTotal,
	)

	return m
}

// RecordRoute counts a routed message.
func (m *Metrics) RecordRoute(intent, agent string) {
	if m == nil {
		return
	}
	m.MessagesRoutedTotal.WithLabelValues(intent, agent).Inc()
}

// RecordFallback counts a classification fallback.
func (m *Metrics) RecordFallback(reason string) {
	if m == nil {
		return
	}
	m.ClassificationFallbacksTotal.WithLabelValues(reason).Inc()
}

// RecordDispatchError counts a failed routing attempt.
func (m *Metrics) RecordDispatchError(reason string) {
	if m == nil {
		return
	}
	m.DispatchErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordGeneration counts an agent generation and observes its duration.
func (m *Metrics) RecordGeneration(agentID, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.AgentGenerationsTotal.WithLabelValues(agentID, status).Inc()
	m.AgentGenerationDuration.WithLabelValues(agentID).Observe(d.Seconds())
}

// RecordCycle counts a poll cycle.
func (m *Metrics) RecordCycle(loop, outcome string) {
	if m == nil {
		return
	}
	m.PollCyclesTotal.WithLabelValues(loop, outcome).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
