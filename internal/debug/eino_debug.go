package debug

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/cloudwego/eino-ext/devops"

	"github.com/dyike/MarketPulse/config"
)

// initFunc starts the eino devops server on port; replaced in tests.
var initFunc = func(ctx context.Context, port int) error {
	return devops.Init(ctx, devops.WithDevServerPort(strconv.Itoa(port)))
}

type EinoDebugger struct {
	enabled bool
	port    int
	verbose bool
	logger  *slog.Logger
}

func NewEinoDebugger(cfg *config.Config, log *slog.Logger) *EinoDebugger {
	if log == nil {
		log = slog.Default()
	}
	return &EinoDebugger{
		enabled: cfg.EinoDebugEnabled,
		port:    cfg.EinoDebugPort,
		verbose: cfg.Debug,
		logger:  log,
	}
}

// Initialize starts the visual debug plugin when enabled. A disabled debugger is
// a no-op. Only graphs compiled after Initialize are visible to the plugin.
func (d *EinoDebugger) Initialize(ctx context.Context) error {
	if !d.enabled {
		return nil
	}

	if d.verbose {
		d.logger.Info("initializing eino debug plugin", "port", d.port)
	}

	if err := initFunc(ctx, d.port); err != nil {
		return fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
	}

	d.logger.Info("eino debug server ready", "url", d.GetDebugURL())
	return nil
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.enabled
}

func (d *EinoDebugger) GetDebugURL() string {
	if !d.enabled {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", d.port)
}
