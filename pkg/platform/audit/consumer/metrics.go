package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "enrollment/pkg/platform/audit"
)

// Metrics holds Prometheus metrics for audit persistence.
type Metrics struct {
	Persisted      *prometheus.CounterVec
	DecodeFailures *prometheus.CounterVec
	StoreFailures  *prometheus.CounterVec
}

// NewMetrics registers audit consumer metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Persisted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollment_audit_records_persisted_total",
			Help: "Total number of audit records written to the store",
		}, []string{"topic", "event_type"}),
		DecodeFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollment_audit_decode_failures_total",
			Help: "Total number of audit messages that could not be decoded",
		}, []string{"topic"}),
		StoreFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollment_audit_store_failures_total",
			Help: "Total number of audit records the store rejected",
		}, []string{"topic"}),
	}
}

func (m *Metrics) incPersisted(topic string, eventType audit.EventType) {
	if m != nil {
		m.Persisted.WithLabelValues(topic, string(eventType)).Inc()
	}
}

func (m *Metrics) incDecodeFailure(topic string) {
	if m != nil {
		m.DecodeFailures.WithLabelValues(topic).Inc()
	}
}

func (m *Metrics) incStoreFailure(topic string) {
	if m != nil {
		m.StoreFailures.WithLabelValues(topic).Inc()
	}
}
