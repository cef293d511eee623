package cli

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dyike/MarketPulse/config"
	"github.com/dyike/MarketPulse/internal/advisor"
	"github.com/dyike/MarketPulse/internal/dashboard"
	"github.com/dyike/MarketPulse/internal/marketdata"
	"github.com/dyike/MarketPulse/internal/metrics"
)

// modelFactoryFor builds the chat model factory for a configuration; replaced in tests.
var modelFactoryFor = advisor.NewModelFactory

// switchableCredential reads the API key from an environment variable whose
// name can change on config reload.
type switchableCredential struct {
	mu   sync.RWMutex
	name string
}

func (s *switchableCredential) CurrentCredential() (string, bool) {
	s.mu.RLock()
	name := s.name
	s.mu.RUnlock()
	return config.EnvCredential{Name: name}.CurrentCredential()
}

func (s *switchableCredential) set(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// app is one wired dashboard: feed, recommendation client and session.
type app struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	creds   *switchableCredential
	feed    *marketdata.Feed
	client  *advisor.Client
	dash    *dashboard.Dashboard
}

func newApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	instruments, err := config.LoadInstruments(cfg.ResolvedInstrumentsFile())
	if err != nil {
		return nil, err
	}
	factory, err := modelFactoryFor(cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.NewMetrics()
	creds := &switchableCredential{name: cfg.CredentialEnv}
	feed := marketdata.NewFeed(instruments,
		marketdata.WithSource(marketdata.NewSource(cfg.Seed)),
		marketdata.WithHistoryPoints(cfg.HistoryPoints),
	)
	client := advisor.NewClient(creds, factory,
		advisor.WithSettings(advisor.SettingsFromConfig(cfg)),
		advisor.WithRecorder(m),
		advisor.WithLogger(log),
	)
	dash := dashboard.New(feed, client,
		dashboard.WithRecorder(m),
		dashboard.WithLogger(log),
	)
	dash.Bootstrap()

	return &app{
		logger:  log,
		metrics: m,
		creds:   creds,
		feed:    feed,
		client:  client,
		dash:    dash,
	}, nil
}

// apply hot-swaps the LLM settings. The instrument list and seed need a restart.
func (a *app) apply(cfg *config.Config) error {
	factory, err := modelFactoryFor(cfg)
	if err != nil {
		return fmt.Errorf("apply config: %w", err)
	}
	a.client.Reconfigure(factory, advisor.SettingsFromConfig(cfg))
	a.creds.set(cfg.CredentialEnv)
	a.metrics.ConfigReloads.Inc()
	a.logger.Info("llm settings applied", "provider", cfg.LLMProvider, "model", cfg.Model)
	return nil
}
