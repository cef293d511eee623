package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// restartFields only take effect when the process starts.
var restartFields = map[string]bool{
	"project_dir":        true,
	"history_points":     true,
	"instruments_file":   true,
	"seed":               true,
	"listen_addr":        true,
	"log_level":          true,
	"log_format":         true,
	"eino_debug_enabled": true,
	"eino_debug_port":    true,
}

// Change is one applied settings update.
type Change struct {
	Previous Config
	Current  Config
}

// Fields returns the JSON names of the settings that differ, in struct order.
func (c Change) Fields() []string {
	prev := reflect.ValueOf(c.Previous)
	cur := reflect.ValueOf(c.Current)
	t := prev.Type()

	var fields []string
	for i := 0; i < t.NumField(); i++ {
		if reflect.DeepEqual(prev.Field(i).Interface(), cur.Field(i).Interface()) {
			continue
		}
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" {
			name = t.Field(i).Name
		}
		fields = append(fields, name)
	}
	return fields
}

// RestartFields returns the changed settings that are ignored until restart.
func (c Change) RestartFields() []string {
	var out []string
	for _, f := range c.Fields() {
		if restartFields[f] {
			out = append(out, f)
		}
	}
	return out
}

// Manager owns the JSON settings file used by the serve command and
// reloads it when it changes on disk.
type Manager struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.RWMutex
	cfg      Config
	digest   [sha256.Size]byte
	watching bool
	onChange func(Change)
}

type managerOptions struct {
	configPath    string
	initialConfig *Config
	debounce      time.Duration
	logger        *slog.Logger
}

type ManagerOption func(*managerOptions)

func NewManager(opts ...ManagerOption) (*Manager, error) {
	options := managerOptions{
		debounce: 300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&options)
	}

	path := options.configPath
	if path == "" {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	m := &Manager{
		path:     path,
		debounce: options.debounce,
		logger:   options.logger,
	}
	if err := m.open(options.initialConfig); err != nil {
		return nil, err
	}
	return m, nil
}

// open loads the file, or seeds it from initial (or the defaults) when absent.
func (m *Manager) open(initial *Config) error {
	data, err := os.ReadFile(m.path)
	switch {
	case err == nil:
		cfg, err := decodeConfig(m.path, data)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		m.cfg = cfg
		m.digest = sha256.Sum256(data)
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("read config: %w", err)
	}

	cfg := *DefaultConfigWithRoot(filepath.Dir(m.path))
	if initial != nil {
		cfg = *initial
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := m.persist(cfg); err != nil {
		return fmt.Errorf("write initial config: %w", err)
	}
	m.cfg = cfg
	return nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Path() string {
	return m.path
}

// UpdateFromJSON merges the fields present in jsonStr over the current
// settings and applies the result through Update.
func (m *Manager) UpdateFromJSON(jsonStr string) error {
	cfg := m.Get()
	if err := json.Unmarshal([]byte(jsonStr), &cfg); err != nil {
		return fmt.Errorf("parse config json: %w", err)
	}
	return m.Update(cfg)
}

// Update validates and persists cfg, then notifies the change callback.
// Writing the file does not trigger a second reload.
func (m *Manager) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if reflect.DeepEqual(m.Get(), cfg) {
		return nil
	}
	if err := m.persist(cfg); err != nil {
		return err
	}
	m.apply(cfg)
	return nil
}

// Watch follows the settings file until ctx is done. onChange runs after
// every reload that produced a different, valid configuration.
func (m *Manager) Watch(ctx context.Context, onChange func(Change)) error {
	m.mu.Lock()
	m.onChange = onChange
	if m.watching {
		m.mu.Unlock()
		return nil
	}
	m.watching = true
	m.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Editors replace files by rename, so the directory is watched.
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	go m.watchLoop(ctx, watcher)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != filepath.Clean(m.path) ||
				evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(m.debounce, m.reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.log().Warn("config watcher error", "error", err)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) reload() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		// A rename in flight leaves no file for a moment; the Create follows.
		if !errors.Is(err, os.ErrNotExist) {
			m.log().Warn("config reload failed", "error", err)
		}
		return
	}

	digest := sha256.Sum256(data)
	m.mu.RLock()
	own := digest == m.digest
	m.mu.RUnlock()
	if own {
		return
	}

	cfg, err := decodeConfig(m.path, data)
	if err != nil {
		m.log().Warn("config reload rejected", "error", err)
		return
	}
	m.mu.Lock()
	m.digest = digest
	m.mu.Unlock()

	if reflect.DeepEqual(m.Get(), cfg) {
		return
	}
	m.log().Info("config reloaded")
	m.apply(cfg)
}

// log falls back to the process default, which the CLI installs after the
// manager is built.
func (m *Manager) log() *slog.Logger {
	l := m.logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("config", m.path)
}

func (m *Manager) apply(cfg Config) {
	m.mu.Lock()
	change := Change{Previous: m.cfg, Current: cfg}
	m.cfg = cfg
	cb := m.onChange
	m.mu.Unlock()

	if cb != nil {
		cb(change)
	}
}

// persist writes cfg and remembers its digest so the watcher skips the echo.
func (m *Manager) persist(cfg Config) error {
	data, err := encodeConfig(cfg)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.digest = sha256.Sum256(data)
	m.mu.Unlock()
	return writeAtomic(m.path, data)
}

// decodeConfig overlays data on the built-in defaults so a partial file stays
// valid, then validates the result.
func decodeConfig(path string, data []byte) (Config, error) {
	cfg := *DefaultConfigWithRoot(filepath.Dir(path))
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func encodeConfig(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

func writeConfigFile(path string, cfg Config) error {
	data, err := encodeConfig(cfg)
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "cfg-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("flush config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp config: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		if dir, err = os.Getwd(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "MarketPulse", "config.json"), nil
}

func WithConfigDir(dir string) ManagerOption {
	return func(o *managerOptions) {
		if dir != "" {
			o.configPath = filepath.Join(dir, "config.json")
		}
	}
}

func WithConfigPath(path string) ManagerOption {
	return func(o *managerOptions) {
		if path != "" {
			o.configPath = path
		}
	}
}

func WithDebounce(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

func WithInitialConfig(cfg *Config) ManagerOption {
	return func(o *managerOptions) {
		o.initialConfig = cfg
	}
}

func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(o *managerOptions) {
		o.logger = l
	}
}
