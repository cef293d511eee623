// Package gateway serves the dashboard to a browser: a small JSON API, a
// WebSocket event stream, Prometheus metrics and a health probe.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dyike/MarketPulse/config"
	"github.com/dyike/MarketPulse/consts"
	"github.com/dyike/MarketPulse/internal/advisor"
	"github.com/dyike/MarketPulse/internal/dashboard"
	"github.com/dyike/MarketPulse/internal/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SettingsStore is the editable settings file served on /api/config.
type SettingsStore interface {
	Get() config.Config
	UpdateFromJSON(jsonStr string) error
}

// Server exposes one Dashboard over HTTP.
type Server struct {
	dash     *dashboard.Dashboard
	hub      *Hub
	metrics  *metrics.Metrics
	health   *metrics.HealthStatus
	settings SettingsStore
	logger   *slog.Logger
	srv      *http.Server
}

type ServerOption func(*Server)

// WithSettingsStore enables GET and PUT /api/config.
func WithSettingsStore(store SettingsStore) ServerOption {
	return func(s *Server) { s.settings = store }
}

func NewServer(addr string, dash *dashboard.Dashboard, hub *Hub, m *metrics.Metrics, health *metrics.HealthStatus, log *slog.Logger, opts ...ServerOption) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		dash:    dash,
		hub:     hub,
		metrics: m,
		health:  health,
		logger:  log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/assets", s.handleAssets)
	mux.HandleFunc("GET /api/assets/{symbol...}", s.handleAsset)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/select", s.handleSelect)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /ws", s.handleWS)
	if s.settings != nil {
		mux.HandleFunc("GET /api/config", s.handleGetConfig)
		mux.HandleFunc("PUT /api/config", s.handlePutConfig)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	if s.health != nil {
		mux.Handle("GET /healthz", s.health)
	}
	return withCORS(mux)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.Close()
	return s.srv.Shutdown(shutdownCtx)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	v := s.dash.View(r.URL.Query().Get("q"))
	s.writeJSON(w, http.StatusOK, v.Assets)
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	asset, ok := s.dash.Asset(symbol)
	if !ok {
		s.writeError(w, http.StatusNotFound, consts.CodeUnknownSymbol, "unknown symbol "+symbol)
		return
	}
	s.writeJSON(w, http.StatusOK, asset)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.dash.View(r.URL.Query().Get("q")))
}

type selectRequest struct {
	Symbol string `json:"symbol"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil || req.Symbol == "" {
		s.writeError(w, http.StatusBadRequest, consts.CodeBadRequest, "body must be {\"symbol\": \"...\"}")
		return
	}

	// The analysis outlives a dropped connection so the session still updates.
	res, err := s.dash.Select(context.WithoutCancel(r.Context()), req.Symbol)
	s.writeAnalysis(w, res, err)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	res, err := s.dash.Refresh(context.WithoutCancel(r.Context()))
	s.writeAnalysis(w, res, err)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.settings.Get())
}

// handlePutConfig merges the body's fields over the current settings. The
// settings file is rewritten and the change applied like a file edit.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<10))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, consts.CodeBadRequest, err.Error())
		return
	}
	if err := s.settings.UpdateFromJSON(string(body)); err != nil {
		s.writeError(w, http.StatusBadRequest, consts.CodeBadRequest, err.Error())
		return
	}
	s.logger.Info("settings updated over http", "remote", r.RemoteAddr)
	s.writeJSON(w, http.StatusOK, s.settings.Get())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	s.hub.Register(conn, s.hub.encodeState(s.dash.View("")))
}

func (s *Server) writeAnalysis(w http.ResponseWriter, res dashboard.AnalysisResult, err error) {
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, res)
	case errors.Is(err, advisor.ErrMissingCredential):
		s.writeError(w, http.StatusServiceUnavailable, consts.CodeCredentialMissing, err.Error())
	case errors.Is(err, advisor.ErrCredentialInvalid):
		s.writeError(w, http.StatusUnauthorized, consts.CodeCredentialInvalid, err.Error())
	case errors.Is(err, dashboard.ErrUnknownSymbol):
		s.writeError(w, http.StatusNotFound, consts.CodeUnknownSymbol, err.Error())
	case errors.Is(err, dashboard.ErrNoSelection):
		s.writeError(w, http.StatusConflict, consts.CodeNoSelection, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, consts.CodeAnalysisFailed, err.Error())
	}
}

type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(w, status, errorBody{Code: code, Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", "status", status, "error", err)
	}
}
