package telemetry

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the self metrics of the RUM core. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	commandsProcessed *prometheus.CounterVec
	eventsWritten     *prometheus.CounterVec
	eventsDropped     *prometheus.CounterVec
	sessionsStarted   *prometheus.CounterVec
	queueDepth        prometheus.Gauge
}

// NewMetrics registers the RUM metrics on a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	prom := promauto.With(reg)
	return &Metrics{
		registry: reg,
		commandsProcessed: prom.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rum_commands_processed_total",
				Help: "Commands processed by the scope tree.",
			},
			[]string{"command"},
		),
		eventsWritten: prom.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rum_events_written_total",
				Help: "Events kept by the event mapper and handed to the publisher.",
			},
			[]string{"type"},
		),
		eventsDropped: prom.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rum_events_dropped_total",
				Help: "Events dropped before reaching storage.",
			},
			[]string{"type", "reason"},
		),
		sessionsStarted: prom.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rum_sessions_started_total",
				Help: "Sessions started, by start reason and sampling decision.",
			},
			[]string{"precondition", "sampled"},
		),
		queueDepth: prom.NewGauge(
			prometheus.GaugeOpts{
				Name: "rum_command_queue_depth",
				Help: "Commands waiting to be processed.",
			},
		),
	}
}

func (m *Metrics) CommandProcessed(command string) {
	if m == nil {
		return
	}
	m.commandsProcessed.WithLabelValues(command).Inc()
}

func (m *Metrics) EventWritten(eventType string) {
	if m == nil {
		return
	}
	m.eventsWritten.WithLabelValues(eventType).Inc()
}

func (m *Metrics) EventDropped(eventType, reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(eventType, reason).Inc()
}

func (m *Metrics) SessionStarted(precondition string, sampled bool) {
	if m == nil {
		return
	}
	m.sessionsStarted.WithLabelValues(precondition, strconv.FormatBool(sampled)).Inc()
}

func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
