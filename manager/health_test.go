package manager

import (
	"context"
	"testing"
	"time"

	"github.com/opencuff/opencuff/config"
	"github.com/opencuff/opencuff/toolregistry"

	_ "github.com/opencuff/opencuff/plugin/builtin"
)

// Bounded recovery: a plugin stuck in error whose every recovery
// attempt fails must accumulate restart attempts across sweeps until
// it gives up and reaches unloaded.
func TestHealthMonitorBoundedRecovery(t *testing.T) {
	reg := toolregistry.New(nil)
	pc := config.PluginConfig{
		Type:            config.TypeInSource,
		Enabled:         true,
		Module:          "opencuff.plugins.builtin.dummy",
		Config:          map[string]any{"prefix": "x"},
		ProcessSettings: config.ProcessSettings{MaxRestarts: 2},
	}
	l := NewLifecycle("dummy", pc, reg, nil)
	if err := l.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Force the lifecycle into error state directly, the state a
	// failed health check or reload would have produced, then point
	// its config at a module that will never load successfully so
	// every recovery attempt fails.
	l.setState(StateError)
	l.mu.Lock()
	l.config.Module = "opencuff.plugins.builtin.does-not-exist"
	l.mu.Unlock()

	monitor := NewHealthMonitor(10*time.Millisecond, func() []*Lifecycle { return []*Lifecycle{l} }, nil)
	monitor.Start()
	defer monitor.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && l.State() != StateUnloaded {
		time.Sleep(10 * time.Millisecond)
	}

	if l.State() != StateUnloaded {
		t.Fatalf("expected plugin to give up and reach unloaded after exceeding max restarts, got %s", l.State())
	}
}

func TestHealthMonitorZeroIntervalDisables(t *testing.T) {
	called := false
	monitor := NewHealthMonitor(0, func() []*Lifecycle {
		called = true
		return nil
	}, nil)
	monitor.Start()
	time.Sleep(30 * time.Millisecond)
	monitor.Stop()
	if called {
		t.Fatalf("expected a zero interval to disable the monitor entirely")
	}
}

func TestHealthMonitorStopIsIdempotent(t *testing.T) {
	monitor := NewHealthMonitor(10*time.Millisecond, func() []*Lifecycle { return nil }, nil)
	monitor.Start()
	monitor.Stop()
	monitor.Stop() // no-op, must not block or panic
}
