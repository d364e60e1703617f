package manager

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// HealthMonitor runs a periodic sweep over a set of lifecycles,
// recovering any that report unhealthy. Sweeps are sequential: a slow
// health check on one plugin delays the rest of that sweep but never
// overlaps with the next one.
type HealthMonitor struct {
	interval time.Duration
	logger   *slog.Logger
	lister   func() []*Lifecycle

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewHealthMonitor constructs a monitor. lister is called at the start
// of every sweep to get the current set of lifecycles, so the monitor
// always sees the manager's latest plugin set without needing its own
// synchronization with config changes.
func NewHealthMonitor(interval time.Duration, lister func() []*Lifecycle, logger *slog.Logger) *HealthMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthMonitor{interval: interval, lister: lister, logger: logger}
}

// Start begins the periodic sweep. interval <= 0 disables the monitor
// entirely (logged). Idempotent.
func (m *HealthMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	if m.interval <= 0 {
		m.logger.Info("health monitor disabled", "interval", m.interval)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	go m.loop(ctx, m.done)
}

// Stop cancels the sweep loop and waits for at most one in-flight
// iteration to finish. Idempotent.
func (m *HealthMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.mu.Unlock()

	cancel()
	<-done
}

func (m *HealthMonitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

// sweep checks every active plugin's health, demoting unhealthy ones to
// error, and retries recovery on every plugin still sitting in error
// from a prior sweep, so a plugin stuck in error accumulates restart
// attempts across sweeps until Recover gives up and it reaches
// unloaded, rather than recovery being attempted exactly once.
func (m *HealthMonitor) sweep(ctx context.Context) {
	for _, l := range m.lister() {
		switch l.State() {
		case StateActive:
			if !l.HealthCheck(ctx) {
				m.logger.Warn("plugin failed health check, recovering", "plugin", l.name)
				l.setState(StateError)
				l.Recover(ctx)
			}
		case StateError:
			l.Recover(ctx)
		}
	}
}
