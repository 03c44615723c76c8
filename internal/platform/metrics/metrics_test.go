package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

func TestObserveAuthOutcome(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAuthOutcome("rejected", "EXPIRED")
	m.ObserveAuthOutcome("rejected", "EXPIRED")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthOutcomes.WithLabelValues("rejected", "EXPIRED")))
}

func TestLatencyMiddlewareUsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(m.LatencyMiddleware)
	r.Get("/audit/user/{userId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/audit/user/42", nil))

	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestDuration, "enrollment_http_request_duration_seconds"))
	assert.Equal(t, uint64(1), histogramCount(t, m, "GET", "/audit/user/{userId}", "418"))
}

func histogramCount(t *testing.T, m *Metrics, labels ...string) uint64 {
	t.Helper()
	obs, err := m.HTTPRequestDuration.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("metric: %v", err)
	}
	var pb dto.Metric
	if err := obs.(prometheus.Metric).Write(&pb); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return pb.GetHistogram().GetSampleCount()
}
