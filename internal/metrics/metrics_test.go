package metrics

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metricLoop:
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metricLoop
				}
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
			if h := metric.GetHistogram(); h != nil {
				return float64(h.GetSampleCount())
			}
			if g := metric.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	return 0
}

func TestObserveAnalysis(t *testing.T) {
	m := NewMetrics()
	m.ObserveAnalysis("success", 120*time.Millisecond)
	m.ObserveAnalysis("fallback", time.Second)
	m.ObserveAnalysis("success", 80*time.Millisecond)

	if v := counterValue(t, m, "marketpulse_analyses_total", map[string]string{"outcome": "success"}); v != 2 {
		t.Errorf("expected 2 successes, got %v", v)
	}
	if v := counterValue(t, m, "marketpulse_analyses_total", map[string]string{"outcome": "fallback"}); v != 1 {
		t.Errorf("expected 1 fallback, got %v", v)
	}
	if v := counterValue(t, m, "marketpulse_analysis_duration_seconds", nil); v != 3 {
		t.Errorf("expected 3 latency samples, got %v", v)
	}
}

func TestObserveTickAndSuperseded(t *testing.T) {
	m := NewMetrics()
	m.ObserveTick(time.Millisecond)
	m.ObserveTick(time.Millisecond)
	m.ObserveSuperseded()

	if v := counterValue(t, m, "marketpulse_ticks_total", nil); v != 2 {
		t.Errorf("expected 2 ticks, got %v", v)
	}
	if v := counterValue(t, m, "marketpulse_analyses_superseded_total", nil); v != 1 {
		t.Errorf("expected 1 superseded, got %v", v)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.WSClients.Set(3)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "marketpulse_ws_clients 3") {
		t.Errorf("expected ws gauge in exposition, got:\n%s", body)
	}
}

func TestHealthStatus(t *testing.T) {
	h := NewHealthStatus()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before bootstrap, got %d", rec.Code)
	}

	h.SetAssets(6)
	h.SetProvider("gemini")
	h.SetLastTickTime(time.Now())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" || body["assets"] != float64(6) || body["provider"] != "gemini" {
		t.Errorf("unexpected health body %v", body)
	}
}
