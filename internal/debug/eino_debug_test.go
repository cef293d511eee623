package debug

import (
	"context"
	"errors"
	"testing"

	"github.com/dyike/MarketPulse/config"
	"github.com/dyike/MarketPulse/internal/logger"
)

var lastPort int

func stubInit(t *testing.T, err error) *int {
	t.Helper()
	calls := 0
	prev := initFunc
	initFunc = func(_ context.Context, port int) error {
		calls++
		lastPort = port
		return err
	}
	t.Cleanup(func() { initFunc = prev })
	return &calls
}

func TestDisabledDebuggerIsNoop(t *testing.T) {
	calls := stubInit(t, nil)
	cfg := config.DefaultConfigWithRoot(t.TempDir())

	d := NewEinoDebugger(cfg, logger.Discard())
	if err := d.Initialize(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *calls != 0 {
		t.Errorf("expected no init when disabled, got %d", *calls)
	}
	if d.IsEnabled() || d.GetDebugURL() != "" {
		t.Error("expected disabled debugger to expose no URL")
	}
}

func TestEnabledDebugger(t *testing.T) {
	calls := stubInit(t, nil)
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.EinoDebugEnabled = true
	cfg.EinoDebugPort = 6000

	d := NewEinoDebugger(cfg, logger.Discard())
	if err := d.Initialize(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *calls != 1 {
		t.Errorf("expected one init, got %d", *calls)
	}
	if lastPort != 6000 {
		t.Errorf("expected devops to start on port 6000, got %d", lastPort)
	}
	if d.GetDebugURL() != "http://localhost:6000" {
		t.Errorf("unexpected url %q", d.GetDebugURL())
	}
}

func TestDebuggerInitFailure(t *testing.T) {
	stubInit(t, errors.New("port in use"))
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.EinoDebugEnabled = true

	if err := NewEinoDebugger(cfg, logger.Discard()).Initialize(context.Background()); err == nil {
		t.Fatal("expected init error")
	}
}
