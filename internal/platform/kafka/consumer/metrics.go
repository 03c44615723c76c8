package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for consumed messages.
type Metrics struct {
	Handled        *prometheus.CounterVec
	Failed         *prometheus.CounterVec
	HandleDuration *prometheus.HistogramVec
}

// NewMetrics registers consumer metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Handled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollment_consumer_messages_handled_total",
			Help: "Total number of messages handled and acknowledged",
		}, []string{"topic"}),
		Failed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollment_consumer_messages_failed_total",
			Help: "Total number of handler failures (messages left unacknowledged)",
		}, []string{"topic"}),
		HandleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "enrollment_consumer_handle_duration_seconds",
			Help:    "Time spent in the message handler",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
	}
}

func (m *Metrics) observe(topic string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.HandleDuration.WithLabelValues(topic).Observe(d.Seconds())
	if err != nil {
		m.Failed.WithLabelValues(topic).Inc()
		return
	}
	m.Handled.WithLabelValues(topic).Inc()
}
