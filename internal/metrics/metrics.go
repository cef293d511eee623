package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the dashboard, registered on a
// private registry.
type Metrics struct {
	registry *prometheus.Registry

	TicksTotal      prometheus.Counter
	TickDur         prometheus.Histogram
	AnalysesTotal   *prometheus.CounterVec // labels: outcome
	AnalysisDur     prometheus.Histogram
	SupersededTotal prometheus.Counter
	WSClients       prometheus.Gauge
	WSDroppedTotal  prometheus.Counter
	ConfigReloads   prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_ticks_total",
			Help: "Total feed ticks applied",
		}),
		TickDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketpulse_tick_duration_seconds",
			Help:    "Time to advance every asset once",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketpulse_analyses_total",
			Help: "Recommendation requests by outcome",
		}, []string{"outcome"}),
		AnalysisDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketpulse_analysis_duration_seconds",
			Help:    "Recommendation request latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SupersededTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_analyses_superseded_total",
			Help: "Recommendations discarded because a newer request or selection replaced them",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketpulse_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		WSDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_ws_dropped_total",
			Help: "Messages dropped for slow WebSocket clients",
		}),
		ConfigReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_config_reloads_total",
			Help: "Configuration changes applied at runtime",
		}),
	}

	m.registry.MustRegister(
		m.TicksTotal,
		m.TickDur,
		m.AnalysesTotal,
		m.AnalysisDur,
		m.SupersededTotal,
		m.WSClients,
		m.WSDroppedTotal,
		m.ConfigReloads,
	)
	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAnalysis records one recommendation request.
func (m *Metrics) ObserveAnalysis(outcome string, elapsed time.Duration) {
	m.AnalysesTotal.WithLabelValues(outcome).Inc()
	m.AnalysisDur.Observe(elapsed.Seconds())
}

// ObserveTick records one feed tick.
func (m *Metrics) ObserveTick(elapsed time.Duration) {
	m.TicksTotal.Inc()
	m.TickDur.Observe(elapsed.Seconds())
}

// ObserveSuperseded counts a discarded stale response.
func (m *Metrics) ObserveSuperseded() {
	m.SupersededTotal.Inc()
}

// HealthStatus reports liveness for /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	LastTickTime time.Time
	Assets       int
	Provider     string
	StartedAt    time.Time
}

func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetAssets(n int) {
	h.mu.Lock()
	h.Assets = n
	h.mu.Unlock()
}

func (h *HealthStatus) SetProvider(p string) {
	h.mu.Lock()
	h.Provider = p
	h.mu.Unlock()
}

// ServeHTTP handles the /healthz endpoint. The service is degraded until the
// feed holds at least one asset.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if h.Assets == 0 {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	tickAge := ""
	lastTick := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
		lastTick = h.LastTickTime.Format(time.RFC3339)
	}

	status := struct {
		Status       string `json:"status"`
		Uptime       string `json:"uptime"`
		Assets       int    `json:"assets"`
		Provider     string `json:"provider"`
		LastTickTime string `json:"last_tick_time"`
		TickAge      string `json:"tick_age"`
	}{
		Status:       overallStatus,
		Uptime:       time.Since(h.StartedAt).Round(time.Second).String(),
		Assets:       h.Assets,
		Provider:     h.Provider,
		LastTickTime: lastTick,
		TickAge:      tickAge,
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}
