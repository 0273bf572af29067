package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics tracks calls to the CropGuard backend.
type UpstreamMetrics struct {
	service       string
	callsTotal    *prometheus.CounterVec
	callsDuration *prometheus.HistogramVec
}

func NewUpstreamMetrics(service string, registerer prometheus.Registerer) *UpstreamMetrics {
	callsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "calls_total",
			Help:      "Total backend calls by endpoint and outcome.",
		},
		[]string{"service", "endpoint", "outcome"},
	)
	callsDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_duration_seconds",
			Help:      "Backend call duration in seconds by endpoint.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)

	if registerer != nil {
		registerer.MustRegister(callsTotal, callsDuration)
	}

	return &UpstreamMetrics{
		service:       service,
		callsTotal:    callsTotal,
		callsDuration: callsDuration,
	}
}

func (m *UpstreamMetrics) ObserveUpstream(endpoint, outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.callsTotal.WithLabelValues(m.service, endpoint, outcome).Inc()
	if duration >= 0 {
		m.callsDuration.WithLabelValues(m.service, endpoint).Observe(duration.Seconds())
	}
}
