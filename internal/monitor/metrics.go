package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the controller input counters on a private registry, kept
// separate from any global state so tests can construct them freely.
type Metrics struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	unknown  prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "controller_events_total",
		Help: "Resolved controller events by kind.",
	}, []string{"kind"})
	unknown := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "controller_unknown_events_total",
		Help: "Events whose raw code has no entry in the active profile.",
	})
	registry.MustRegister(events, unknown)
	return &Metrics{registry: registry, events: events, unknown: unknown}
}

// CountEvent records one resolved event of the given kind.
func (m *Metrics) CountEvent(kind string) {
	m.events.WithLabelValues(kind).Inc()
}

// CountUnknown records one event that missed the profile.
func (m *Metrics) CountUnknown() {
	m.unknown.Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, used by tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
