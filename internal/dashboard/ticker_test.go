package dashboard

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/dyike/MarketPulse/internal/logger"
	"github.com/dyike/MarketPulse/models"
)

type countingTickable struct {
	n     atomic.Int32
	delay time.Duration
}

func (c *countingTickable) Tick() []models.Asset {
	c.n.Add(1)
	time.Sleep(c.delay)
	return nil
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestTickerRunsAndStops(t *testing.T) {
	target := &countingTickable{}
	tk := NewTicker(target, time.Second, logger.Discard())
	if err := tk.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := tk.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}

	waitFor(t, 3*time.Second, func() bool { return target.n.Load() >= 1 })
	tk.Stop()
	if tk.Running() {
		t.Error("expected ticker stopped")
	}

	after := target.n.Load()
	time.Sleep(1500 * time.Millisecond)
	if target.n.Load() != after {
		t.Errorf("ticks continued after stop: %d -> %d", after, target.n.Load())
	}
}

func TestTickerSkipsOverlappingTicks(t *testing.T) {
	target := &countingTickable{delay: 2500 * time.Millisecond}
	tk := NewTicker(target, time.Second, logger.Discard())
	if err := tk.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(3200 * time.Millisecond)
	tk.Stop()

	// A 2.5s tick on a 1s schedule can start at most twice in 3.2s.
	if n := target.n.Load(); n < 1 || n > 2 {
		t.Errorf("expected overlapping ticks to be skipped, got %d runs", n)
	}
}

func TestTickerReset(t *testing.T) {
	tk := NewTicker(&countingTickable{}, 0, logger.Discard())
	if tk.Interval() != DefaultTickInterval {
		t.Fatalf("expected default interval, got %v", tk.Interval())
	}
	if err := tk.Reset(2 * time.Second); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if tk.Interval() != 2*time.Second || tk.Running() {
		t.Errorf("reset of stopped ticker must not start it")
	}

	if err := tk.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := tk.Reset(time.Second); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !tk.Running() || tk.Interval() != time.Second {
		t.Errorf("expected running ticker at 1s, got running=%v interval=%v", tk.Running(), tk.Interval())
	}
	tk.Stop()
}
