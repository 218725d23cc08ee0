package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes settlement counters on the default prometheus registry.
type Metrics struct {
	settlementsCreated *prometheus.CounterVec
	transitions        *prometheus.CounterVec
	autoCreateFailures prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		settlementsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cargosettle_settlements_created_total",
			Help: "Settlements created, labelled by origin (manual or auto).",
		}, []string{"origin"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cargosettle_settlement_transitions_total",
			Help: "Applied settlement state transitions, labelled by target status.",
		}, []string{"target"}),
		autoCreateFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cargosettle_autosettle_failures_total",
			Help: "Auto-settlement attempts that failed after retry handling.",
		}),
	}

	for _, collector := range []prometheus.Collector{
		m.settlementsCreated,
		m.transitions,
		m.autoCreateFailures,
	} {
		if err := prometheus.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				panic(err)
			}
		}
	}

	return m
}

func (m *Metrics) IncSettlementCreated(origin string) {
	if m == nil {
		return
	}
	m.settlementsCreated.WithLabelValues(origin).Inc()
}

func (m *Metrics) IncTransition(target string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(target).Inc()
}

func (m *Metrics) IncAutoCreateFailure() {
	if m == nil {
		return
	}
	m.autoCreateFailures.Inc()
}
