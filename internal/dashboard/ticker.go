package dashboard

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dyike/MarketPulse/models"
)

// DefaultTickInterval is the feed cadence when none is configured.
const DefaultTickInterval = 5 * time.Second

// Tickable is advanced once per scheduled tick.
type Tickable interface {
	Tick() []models.Asset
}

// Ticker drives a Tickable on a cron schedule. A tick still running when the
// next one is due causes that one to be skipped.
type Ticker struct {
	target Tickable
	logger *slog.Logger

	mu       sync.Mutex
	cron     *cron.Cron
	interval time.Duration
}

func NewTicker(target Tickable, interval time.Duration, log *slog.Logger) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ticker{target: target, interval: interval, logger: log}
}

// Start schedules ticks. Calling Start on a running ticker is a no-op.
func (t *Ticker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startLocked()
}

func (t *Ticker) startLocked() error {
	if t.cron != nil {
		return nil
	}

	cl := cronLogger{t.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", t.interval), func() { t.target.Tick() }); err != nil {
		return fmt.Errorf("register tick job: %w", err)
	}
	c.Start()
	t.cron = c
	t.logger.Info("ticker started", "interval", t.interval)
	return nil
}

// Stop halts scheduling and waits for a running tick to finish.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Ticker) stopLocked() {
	if t.cron == nil {
		return
	}
	<-t.cron.Stop().Done()
	t.cron = nil
	t.logger.Info("ticker stopped")
}

// Reset changes the interval, restarting the schedule if it was running.
func (t *Ticker) Reset(interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if interval == t.interval {
		return nil
	}
	running := t.cron != nil
	t.stopLocked()
	t.interval = interval
	if running {
		return t.startLocked()
	}
	return nil
}

func (t *Ticker) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cron != nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
