package cli

import (
	"context"
	"log/slog"

	"github.com/dyike/MarketPulse/config"
	"github.com/dyike/MarketPulse/consts"
	"github.com/dyike/MarketPulse/internal/dashboard"
	"github.com/dyike/MarketPulse/internal/debug"
	"github.com/dyike/MarketPulse/internal/gateway"
	"github.com/dyike/MarketPulse/internal/metrics"
)

// runServe runs the dashboard behind the HTTP gateway until ctx is done.
func runServe(ctx context.Context, cfg *config.Config, mgr *config.Manager, log *slog.Logger) error {
	// devops only sees graphs compiled after it starts, so it goes first.
	if err := debug.NewEinoDebugger(cfg, log).Initialize(ctx); err != nil {
		log.Warn("eino debug disabled", "error", err)
	}

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}

	health := metrics.NewHealthStatus()
	health.SetAssets(len(a.feed.Instruments()))
	health.SetProvider(cfg.LLMProvider)

	hub := gateway.NewHub(log, a.metrics)
	a.dash.Subscribe(hub.Publish)
	a.dash.Subscribe(func(ev dashboard.Event) {
		if ev.Type == consts.EventTick {
			health.SetLastTickTime(ev.LastUpdated)
		}
	})

	ticker := dashboard.NewTicker(a.dash, cfg.TickIntervalDuration(), log)
	if err := ticker.Start(); err != nil {
		return err
	}
	defer ticker.Stop()

	var opts []gateway.ServerOption
	if mgr != nil {
		if err := mgr.Watch(ctx, reloadHandler(a, health, ticker, log)); err != nil {
			log.Warn("config watch disabled", "path", mgr.Path(), "error", err)
		}
		opts = append(opts, gateway.WithSettingsStore(mgr))
	}

	// The initial selection is analysed in the background, like any other.
	go func() {
		if _, err := a.dash.Refresh(ctx); err != nil {
			log.Warn("initial analysis failed", "error", err)
		}
	}()

	srv := gateway.NewServer(cfg.ListenAddr, a.dash, hub, a.metrics, health, log, opts...)
	return srv.Run(ctx)
}

// reloadHandler applies a settings change, whether edited on disk or sent to
// PUT /api/config, to the running dashboard.
func reloadHandler(a *app, health *metrics.HealthStatus, ticker *dashboard.Ticker, log *slog.Logger) func(config.Change) {
	return func(change config.Change) {
		next := change.Current
		if fields := change.RestartFields(); len(fields) > 0 {
			log.Warn("config changes need a restart", "fields", fields)
		}
		if err := a.apply(&next); err != nil {
			log.Warn("config change rejected", "error", err)
			return
		}
		health.SetProvider(next.LLMProvider)
		if err := ticker.Reset(next.TickIntervalDuration()); err != nil {
			log.Warn("tick interval change failed", "error", err)
		}
	}
}
