package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CarrierErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers Prometheus metrics with the default registerer.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the metrics with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cttgateway_requests_total",
				Help: "Total number of gateway operations by operation, protocol, and status",
			},
			[]string{"operation", "protocol", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cttgateway_request_duration_seconds",
				Help:    "Gateway operation duration in seconds by operation and protocol",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "protocol"},
		),
		CarrierErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cttgateway_carrier_errors_total",
				Help: "Total carrier errors by protocol and error kind",
			},
			[]string{"protocol", "kind"},
		),
	}
}

// RecordRequest records a request metric.
func (m *Metrics) RecordRequest(operation, protocol, status string, duration float64) {
	m.RequestsTotal.WithLabelValues(operation, protocol, status).Inc()
	m.RequestDuration.WithLabelValues(operation, protocol).Observe(duration)
}

// RecordError records a carrier error metric.
func (m *Metrics) RecordError(protocol, kind string) {
	m.CarrierErrors.WithLabelValues(protocol, kind).Inc()
}
