package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// BreakerStates reports the circuit breaker state of an operation.
type BreakerStates interface {
	State(operation string) gobreaker.State
}

// SessionCounter reports how many sessions are live.
type SessionCounter interface {
	Len() int
}

// RegisterBreakerStates exposes one gauge per operation: 0 closed, 1 half-open, 2 open.
func RegisterBreakerStates(registerer prometheus.Registerer, service string, source BreakerStates, operations ...string) {
	for _, operation := range operations {
		registerer.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "breaker",
				Name:      "state",
				Help:      "Circuit breaker state by operation (0 closed, 1 half-open, 2 open).",
				ConstLabels: prometheus.Labels{
					"service":   service,
					"operation": operation,
				},
			},
			func() float64 { return float64(source.State(operation)) },
		))
	}
}

func RegisterActiveSessions(registerer prometheus.Registerer, service string, source SessionCounter) {
	registerer.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently held in memory.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		func() float64 { return float64(source.Len()) },
	))
}
