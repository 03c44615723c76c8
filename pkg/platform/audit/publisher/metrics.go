package publisher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for audit publishing.
type Metrics struct {
	Published             *prometheus.CounterVec
	Failed                *prometheus.CounterVec
	CircuitBreakerDropped prometheus.Counter
	CircuitBreakerState   prometheus.Gauge
	SendDuration          *prometheus.HistogramVec
}

// NewMetrics registers publisher metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollment_audit_published_total",
			Help: "Total number of audit records acknowledged by the bus",
		}, []string{"topic"}),
		Failed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollment_audit_publish_failures_total",
			Help: "Total number of audit sends that failed or were skipped",
		}, []string{"topic", "reason"}),
		CircuitBreakerDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "enrollment_audit_circuit_breaker_dropped_total",
			Help: "Total number of audit sends skipped because the circuit was open",
		}),
		CircuitBreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "enrollment_audit_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
		SendDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "enrollment_audit_send_duration_seconds",
			Help:    "Time waiting for the bus to acknowledge an audit record",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
	}
}

func (m *Metrics) incPublished(topic string) {
	if m != nil {
		m.Published.WithLabelValues(topic).Inc()
	}
}

func (m *Metrics) incFailed(topic, reason string) {
	if m != nil {
		m.Failed.WithLabelValues(topic, reason).Inc()
	}
}

func (m *Metrics) incDropped() {
	if m != nil {
		m.CircuitBreakerDropped.Inc()
	}
}

func (m *Metrics) observeSend(topic string, d time.Duration) {
	if m != nil {
		m.SendDuration.WithLabelValues(topic).Observe(d.Seconds())
	}
}

func (m *Metrics) setBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}
