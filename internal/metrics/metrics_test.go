package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func readCounter(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func TestRequestsTotalRecordsStatusCode(t *testing.T) {
	m := New()

	m.RequestsTotal.WithLabelValues("openai-primary", "200").Inc()
	m.RequestsTotal.WithLabelValues("openai-primary", "503").Inc()
	m.RequestsTotal.WithLabelValues("openai-primary", "503").Inc()

	if got := readCounter(t, m.RequestsTotal.WithLabelValues("openai-primary", "200")); got != 1 {
		t.Fatalf("expected 200 count=1, got %v", got)
	}
	if got := readCounter(t, m.RequestsTotal.WithLabelValues("openai-primary", "503")); got != 2 {
		t.Fatalf("expected 503 count=2, got %v", got)
	}
}

func TestCircuitBreakerStateGauge(t *testing.T) {
	m := New()

	m.CircuitBreakerState.WithLabelValues("vllm-local").Set(BreakerStateValue("open"))

	var metric dto.Metric
	if err := m.CircuitBreakerState.WithLabelValues("vllm-local").Write(&metric); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if metric.GetGauge().GetValue() != 1 {
		t.Fatalf("expected gauge=1 for open, got %v", metric.GetGauge().GetValue())
	}
}

func TestBreakerStateValueMapping(t *testing.T) {
	cases := map[string]float64{"closed": 0, "open": 1, "half_open": 2, "": 0}
	for state, want := range cases {
		if got := BreakerStateValue(state); got != want {
			t.Errorf("BreakerStateValue(%q) = %v, want %v", state, got, want)
		}
	}
}

func TestHandlerServesRegisteredCollectors(t *testing.T) {
	m := New()
	m.RequestsTotal.WithLabelValues("openai-primary", "200").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "gateway_requests_total") {
		t.Fatalf("expected gateway_requests_total in output, got: %s", rec.Body.String())
	}
}
