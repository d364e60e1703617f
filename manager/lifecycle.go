// Package manager implements the per-plugin lifecycle state machine,
// the health monitor, and the orchestrator that composes them with the
// tool registry, request barrier, configuration watcher, and upstream
// bridge.
package manager

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/opencuff/opencuff/barrier"
	"github.com/opencuff/opencuff/config"
	"github.com/opencuff/opencuff/errs"
	"github.com/opencuff/opencuff/plugin"
	"github.com/opencuff/opencuff/tool"
	"github.com/opencuff/opencuff/toolregistry"
)

// State is one of the closed set of plugin lifecycle states.
type State string

const (
	StateUnloaded     State = "unloaded"
	StateInitializing State = "initializing"
	StateActive       State = "active"
	StateError        State = "error"
	StateRecovering   State = "recovering"
)

const defaultMaxRestarts = 3

// Lifecycle drives one configured plugin through unloaded -> initializing
// -> active -> {error, unloaded}, with bounded recovery from error back
// to active via recovering. All public methods are safe for concurrent
// use; state and adapter are touched only under mu.
type Lifecycle struct {
	name     string
	registry *toolregistry.Registry
	logger   *slog.Logger

	barrier *barrier.RequestBarrier

	mu           sync.Mutex
	state        State
	config       config.PluginConfig
	adapter      plugin.Adapter
	restartCount int
}

// NewLifecycle constructs a Lifecycle in the unloaded state.
func NewLifecycle(name string, pc config.PluginConfig, registry *toolregistry.Registry, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		name:     name,
		config:   pc,
		registry: registry,
		logger:   logger,
		barrier:  barrier.New(0),
		state:    StateUnloaded,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Lifecycle) maxRestarts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.config.ProcessSettings.MaxRestarts > 0 {
		return l.config.ProcessSettings.MaxRestarts
	}
	return defaultMaxRestarts
}

// Load transitions unloaded -> initializing -> {active, error}: creates
// the adapter for the configured type, initializes it, fetches its
// tools, and registers them. Any failure sets state to error and is
// returned to the caller.
func (l *Lifecycle) Load(ctx context.Context) error {
	l.mu.Lock()
	l.state = StateInitializing
	l.mu.Unlock()

	adapter, err := plugin.NewAdapter(l.currentConfig(), l.logger)
	if err != nil {
		l.setState(StateError)
		return l.attribute(err)
	}

	if err := adapter.Initialize(ctx, l.currentConfig().Config); err != nil {
		l.setState(StateError)
		return l.attribute(err)
	}

	tools, err := adapter.GetTools(ctx)
	if err != nil {
		l.setState(StateError)
		return l.attribute(err)
	}

	if err := l.registry.RegisterTools(l.name, tools); err != nil {
		l.setState(StateError)
		return l.attribute(err)
	}

	l.mu.Lock()
	l.adapter = adapter
	l.state = StateActive
	l.mu.Unlock()
	return nil
}

// Unload unregisters the plugin's tools, shuts down its adapter
// (swallowing shutdown errors), and always reaches unloaded.
func (l *Lifecycle) Unload(ctx context.Context) {
	l.registry.UnregisterPlugin(l.name)

	l.mu.Lock()
	adapter := l.adapter
	l.mu.Unlock()

	if adapter != nil {
		if err := adapter.Shutdown(ctx); err != nil {
			l.logger.Warn("plugin shutdown error", "plugin", l.name, "error", err)
		}
	}

	l.mu.Lock()
	l.adapter = nil
	l.state = StateUnloaded
	l.mu.Unlock()
}

// Reload applies newConfig (if non-nil, else the current config) inside
// the request barrier's reload scope: it unregisters the plugin's
// current tools first (so no stale entries survive a failed reload),
// then either calls the adapter's graceful Reload or falls back to
// Shutdown+Initialize, and re-registers the refreshed tool list.
func (l *Lifecycle) Reload(ctx context.Context, newConfig *config.PluginConfig) error {
	release, err := l.barrier.ReloadScope(ctx)
	if err != nil {
		return l.attribute(err)
	}
	defer release()

	l.registry.UnregisterPlugin(l.name)

	l.mu.Lock()
	adapter := l.adapter
	if newConfig != nil {
		l.config = *newConfig
	}
	cfg := l.config
	l.mu.Unlock()

	if adapter == nil {
		l.setState(StateError)
		return errs.New(errs.PluginUnhealthy, "no adapter to reload").WithPlugin(l.name)
	}

	if err := adapter.Reload(ctx, cfg.Config); err != nil {
		l.setState(StateError)
		return l.attribute(err)
	}

	tools, err := adapter.GetTools(ctx)
	if err != nil {
		l.setState(StateError)
		return l.attribute(err)
	}

	if err := l.registry.RegisterTools(l.name, tools); err != nil {
		l.setState(StateError)
		return l.attribute(err)
	}

	l.setState(StateActive)
	return nil
}

// CallTool enters the request barrier's request scope and forwards to
// the adapter if the plugin is active. When the call arrives while a
// reload is already in progress, it's tagged with a request id so the
// wait (and any resulting timeout) can be correlated in the logs.
func (l *Lifecycle) CallTool(ctx context.Context, localName string, args map[string]any) (tool.Result, error) {
	var requestID string
	if l.barrier.Reloading() {
		requestID = uuid.NewString()
		l.logger.Info("tool call waiting on in-progress reload", "plugin", l.name, "tool", localName, "request_id", requestID)
	}

	release, err := l.barrier.RequestScope(ctx)
	if err != nil {
		if requestID != "" {
			l.logger.Warn("tool call timed out waiting on reload", "plugin", l.name, "tool", localName, "request_id", requestID)
		}
		return tool.Result{}, l.attribute(err)
	}
	defer release()

	l.mu.Lock()
	state := l.state
	adapter := l.adapter
	l.mu.Unlock()

	if state != StateActive || adapter == nil {
		return tool.Result{}, errs.New(errs.PluginUnhealthy, "plugin is not active").WithPlugin(l.name)
	}

	return adapter.CallTool(ctx, localName, args)
}

// HealthCheck returns false (never panics/propagates) whenever the
// plugin is not active or the adapter reports unhealthy.
func (l *Lifecycle) HealthCheck(ctx context.Context) (healthy bool) {
	l.mu.Lock()
	state := l.state
	adapter := l.adapter
	l.mu.Unlock()

	if state != StateActive || adapter == nil {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("health check panicked", "plugin", l.name, "panic", r)
			healthy = false
		}
	}()
	return adapter.HealthCheck(ctx)
}

// Recover attempts to bring an errored plugin back to active. It
// enters the request barrier's reload scope first, so any tool call
// admitted while the plugin was still active finishes against the old
// adapter before recovery touches it. The failed adapter is not
// trusted: its tools are unregistered, it is shut down (errors
// swallowed), and a fresh Load rebuilds from the current config. A
// no-op returning true when the plugin isn't in error. Once
// maxRestarts consecutive attempts have failed, the next Recover gives
// up without loading and moves the plugin to unloaded; it stays there
// until a management action or config change re-creates it.
func (l *Lifecycle) Recover(ctx context.Context) bool {
	if l.State() != StateError {
		return true
	}

	release, err := l.barrier.ReloadScope(ctx)
	if err != nil {
		l.logger.Warn("plugin recovery could not drain in-flight requests", "plugin", l.name, "error", err)
		return false
	}
	defer release()

	l.mu.Lock()
	l.state = StateRecovering
	l.restartCount++
	count := l.restartCount
	adapter := l.adapter
	l.adapter = nil
	l.mu.Unlock()

	l.registry.UnregisterPlugin(l.name)
	if adapter != nil {
		if err := adapter.Shutdown(ctx); err != nil {
			l.logger.Warn("plugin shutdown error during recovery", "plugin", l.name, "error", err)
		}
	}

	if count > l.maxRestarts() {
		l.setState(StateUnloaded)
		l.logger.Warn("plugin exceeded max restarts, giving up", "plugin", l.name, "restarts", count-1)
		return false
	}

	if err := l.Load(ctx); err != nil {
		l.logger.Warn("plugin recovery failed", "plugin", l.name, "error", err)
		return false
	}

	l.mu.Lock()
	l.restartCount = 0
	l.mu.Unlock()
	return true
}

func (l *Lifecycle) currentConfig() config.PluginConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.config
}

func (l *Lifecycle) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

func (l *Lifecycle) attribute(err error) error {
	var e *errs.Error
	if as, ok := err.(*errs.Error); ok {
		e = as
		if e.Plugin == "" {
			return e.WithPlugin(l.name)
		}
		return e
	}
	return errs.New(errs.ToolExecutionFailed, err.Error()).WithPlugin(l.name).WithCause(err)
}
