package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManagerCreatesAndUpdates(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	path := filepath.Join(dir, "config.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	cfg := mgr.Get()
	cfg.Model = "gemini-2.5-flash"
	cfg.TickInterval = 2

	data, _ := json.Marshal(cfg)
	if err := mgr.UpdateFromJSON(string(data)); err != nil {
		t.Fatalf("UpdateFromJSON: %v", err)
	}

	updated := mgr.Get()
	if updated.Model != cfg.Model {
		t.Fatalf("expected model %s, got %s", cfg.Model, updated.Model)
	}
	if updated.TickInterval != 2 {
		t.Fatalf("expected tick interval 2, got %d", updated.TickInterval)
	}
}

func TestManagerUpdateFromJSONMergesPartialBody(t *testing.T) {
	mgr, err := NewManager(WithConfigDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	before := mgr.Get()

	if err := mgr.UpdateFromJSON(`{"temperature":0.7}`); err != nil {
		t.Fatalf("UpdateFromJSON: %v", err)
	}
	after := mgr.Get()
	if after.Temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", after.Temperature)
	}
	after.Temperature = before.Temperature
	if after != before {
		t.Errorf("fields absent from the body changed: %+v", after)
	}
}

func TestManagerRejectsInvalidUpdate(t *testing.T) {
	mgr, err := NewManager(WithConfigDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	cfg := mgr.Get()
	cfg.LLMProvider = "carrier-pigeon"
	if err := mgr.Update(cfg); err == nil {
		t.Fatalf("expected validation error for unknown provider")
	}
	if got := mgr.Get().LLMProvider; got == "carrier-pigeon" {
		t.Fatalf("invalid config was applied")
	}
}

func TestManagerLoadsPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(path, []byte(`{"llm_provider":"deepseek","model":"deepseek-chat"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	mgr, err := NewManager(WithConfigPath(path))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := mgr.Get()
	if cfg.LLMProvider != "deepseek" {
		t.Fatalf("expected deepseek provider, got %s", cfg.LLMProvider)
	}
	if cfg.CredentialEnv != "API_KEY" {
		t.Fatalf("expected default credential env, got %q", cfg.CredentialEnv)
	}
}

func TestManagerWatchReloads(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir), WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan Config, 1)
	if err := mgr.Watch(ctx, func(c Change) {
		select {
		case reloaded <- c.Current:
		default:
		}
	}); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	cfg := mgr.Get()
	cfg.Model = "gemini-2.5-pro"

	if err := writeConfigFile(mgr.Path(), cfg); err != nil {
		t.Fatalf("writeConfigFile: %v", err)
	}

	select {
	case got := <-reloaded:
		if got.Model != "gemini-2.5-pro" {
			t.Fatalf("expected reloaded model gemini-2.5-pro, got %s", got.Model)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not fire on config change")
	}
}

func TestManagerUpdateDoesNotEcho(t *testing.T) {
	mgr, err := NewManager(WithConfigDir(t.TempDir()), WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Change, 4)
	if err := mgr.Watch(ctx, func(c Change) { changes <- c }); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	cfg := mgr.Get()
	cfg.Temperature = 0.7
	if err := mgr.Update(cfg); err != nil {
		t.Fatalf("Update: %v", err)
	}

	select {
	case c := <-changes:
		if c.Current.Temperature != 0.7 {
			t.Fatalf("expected temperature 0.7, got %v", c.Current.Temperature)
		}
	case <-time.After(time.Second):
		t.Fatalf("Update did not notify")
	}

	select {
	case c := <-changes:
		t.Fatalf("own write reloaded again: %v", c.Fields())
	case <-time.After(300 * time.Millisecond):
	}
}

func TestManagerIgnoresInvalidFileOnDisk(t *testing.T) {
	mgr, err := NewManager(WithConfigDir(t.TempDir()), WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Change, 1)
	if err := mgr.Watch(ctx, func(c Change) { changes <- c }); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(mgr.Path(), []byte(`{"llm_provider":"carrier-pigeon"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case c := <-changes:
		t.Fatalf("invalid file applied: %+v", c.Current)
	case <-time.After(300 * time.Millisecond):
	}
	if got := mgr.Get().LLMProvider; got != "gemini" {
		t.Fatalf("provider changed to %q", got)
	}
}

func TestChangeFields(t *testing.T) {
	prev := *DefaultConfigWithRoot("/tmp")
	cur := prev
	cur.Model = "gemini-2.5-flash"
	cur.Seed = 7
	cur.TickInterval = 2

	c := Change{Previous: prev, Current: cur}
	got := c.Fields()
	want := []string{"model", "tick_interval", "seed"}
	if len(got) != len(want) {
		t.Fatalf("Fields() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Fields() = %v, want %v", got, want)
		}
	}

	restart := c.RestartFields()
	if len(restart) != 1 || restart[0] != "seed" {
		t.Fatalf("RestartFields() = %v, want [seed]", restart)
	}

	if fields := (Change{Previous: prev, Current: prev}).Fields(); len(fields) != 0 {
		t.Fatalf("identical configs reported %v", fields)
	}
}
