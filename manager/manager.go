package manager

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opencuff/opencuff/config"
	"github.com/opencuff/opencuff/errs"
	"github.com/opencuff/opencuff/tool"
	"github.com/opencuff/opencuff/toolregistry"
	"github.com/opencuff/opencuff/watcher"
)

// maxConcurrentLoads bounds how many plugins Start loads at once.
const maxConcurrentLoads = 8

// Bridge is the subset of bridge.MCPBridge the manager drives directly.
// The registry's callbacks are the bridge's real subscription
// mechanism; FullSync is a one-time reconciliation after start.
type Bridge interface {
	OnRegistered(plugin string, tools []tool.Descriptor)
	OnUnregistered(plugin string)
	FullSync(registry *toolregistry.Registry)
}

// Manager is the orchestrator: it holds the current settings
// snapshot, the tool registry, the set of per-plugin lifecycles, the
// configuration watcher, the health monitor, and (via registry
// callbacks) the upstream bridge.
type Manager struct {
	logger   *slog.Logger
	registry *toolregistry.Registry
	bridge   Bridge

	settingsPath     string
	injectedSettings *config.Settings

	mu         sync.Mutex
	started    bool
	settings   *config.Settings
	lifecycles map[string]*Lifecycle
	monitor    *HealthMonitor
	watch      *watcher.Watcher

	// reactMu serializes config-change reactions: a second change
	// arriving while the first is in flight queues behind it.
	reactMu sync.Mutex
}

// Option configures a Manager at construction.
type Option func(*Manager)

func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.logger = l } }
func WithBridge(b Bridge) Option       { return func(m *Manager) { m.bridge = b } }

// WithInjectedSettings supplies a settings document directly instead of
// a path, for tests and embedders that build settings in memory.
func WithInjectedSettings(s *config.Settings) Option {
	return func(m *Manager) { m.injectedSettings = s }
}

// New constructs a Manager. settingsPath is consulted by Start unless
// WithInjectedSettings was supplied.
func New(settingsPath string, opts ...Option) *Manager {
	m := &Manager{
		settingsPath: settingsPath,
		lifecycles:   make(map[string]*Lifecycle),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.registry = toolregistry.New(m.logger)
	if m.bridge != nil {
		m.registry.SetCallbacks(m.bridge.OnRegistered, m.bridge.OnUnregistered)
	}
	return m
}

// Registry exposes the manager's tool registry.
func (m *Manager) Registry() *toolregistry.Registry { return m.registry }

// Start loads settings (from the injected document, else the settings
// path), loads every enabled plugin (collecting but never propagating
// per-plugin failures), starts the watcher if live-reload is enabled,
// and starts the health monitor. Idempotent: a second Start is a no-op
// (logged).
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		m.logger.Warn("manager already started")
		return nil
	}
	m.started = true
	m.mu.Unlock()

	settings, err := m.loadInitialSettings()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.settings = settings
	m.mu.Unlock()

	// Plugins load concurrently, bounded, with each plugin's failure
	// captured and logged rather than propagated: one broken plugin
	// must not prevent the rest from loading.
	var g errgroup.Group
	g.SetLimit(maxConcurrentLoads)
	for name, pc := range settings.Plugins {
		if !pc.Enabled {
			continue
		}
		name, pc := name, pc
		g.Go(func() error {
			m.loadPluginLogged(ctx, name, pc)
			return nil
		})
	}
	g.Wait()

	if m.settingsPath != "" && settings.PluginSettings.LiveReload {
		pollInterval := time.Duration(settings.PluginSettings.ConfigPollInterval * float64(time.Second))
		m.mu.Lock()
		m.watch = watcher.New(m.settingsPath, pollInterval, m.onConfigChange, m.logger)
		m.mu.Unlock()
		m.watch.Start()
	}

	m.mu.Lock()
	m.monitor = NewHealthMonitor(
		time.Duration(settings.PluginSettings.HealthCheckInterval*float64(time.Second)),
		m.lifecycleList,
		m.logger,
	)
	m.mu.Unlock()
	m.monitor.Start()

	if m.bridge != nil {
		m.bridge.FullSync(m.registry)
	}

	return nil
}

func (m *Manager) loadInitialSettings() (*config.Settings, error) {
	if m.injectedSettings != nil {
		return m.injectedSettings, nil
	}
	if m.settingsPath != "" {
		return config.Load(m.settingsPath)
	}
	return config.Default(), nil
}

// Stop stops the health monitor, then the watcher, then unloads every
// plugin in arbitrary order, reaching a fully-quiescent state.
// Idempotent.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	monitor := m.monitor
	watch := m.watch
	lifecycles := m.lifecycles
	m.lifecycles = make(map[string]*Lifecycle)
	m.mu.Unlock()

	if monitor != nil {
		monitor.Stop()
	}
	if watch != nil {
		watch.Stop()
	}
	for _, l := range lifecycles {
		l.Unload(ctx)
	}
}

// CallTool looks up fqn in the registry and dispatches to the owning
// lifecycle with the tool's local name.
func (m *Manager) CallTool(ctx context.Context, fqn string, args map[string]any) (tool.Result, error) {
	entry, ok := m.registry.GetTool(fqn)
	if !ok {
		return tool.Result{}, errs.Newf(errs.ToolNotFound, "no such tool %q", fqn)
	}

	l := m.lifecycleFor(entry.Plugin)
	if l == nil {
		return tool.Result{}, errs.New(errs.PluginUnhealthy, "owning plugin is not loaded").WithPlugin(entry.Plugin)
	}
	return l.CallTool(ctx, entry.Descriptor.Name, args)
}

// AllTools returns every currently registered tool, FQN-sorted.
func (m *Manager) AllTools() []toolregistry.Entry {
	return m.registry.ListTools()
}

// LoadPlugin manually creates and loads a lifecycle for name, outside
// the config-diff reconciliation path. Useful for tests and the `call`
// CLI subcommand.
func (m *Manager) LoadPlugin(ctx context.Context, name string, pc config.PluginConfig) error {
	l := NewLifecycle(name, pc, m.registry, m.logger)
	if err := l.Load(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	m.lifecycles[name] = l
	m.mu.Unlock()
	return nil
}

// UnloadPlugin manually unloads and drops the lifecycle for name.
func (m *Manager) UnloadPlugin(ctx context.Context, name string) {
	m.mu.Lock()
	l, ok := m.lifecycles[name]
	delete(m.lifecycles, name)
	m.mu.Unlock()
	if ok {
		l.Unload(ctx)
	}
}

// ReloadPlugin manually reloads the lifecycle for name with newConfig.
func (m *Manager) ReloadPlugin(ctx context.Context, name string, newConfig config.PluginConfig) error {
	l := m.lifecycleFor(name)
	if l == nil {
		return errs.Newf(errs.PluginUnhealthy, "plugin %q is not loaded", name).WithPlugin(name)
	}
	return l.Reload(ctx, &newConfig)
}

func (m *Manager) lifecycleFor(name string) *Lifecycle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lifecycles[name]
}

func (m *Manager) lifecycleList() []*Lifecycle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Lifecycle, 0, len(m.lifecycles))
	for _, l := range m.lifecycles {
		out = append(out, l)
	}
	return out
}

func (m *Manager) loadPluginLogged(ctx context.Context, name string, pc config.PluginConfig) {
	l := NewLifecycle(name, pc, m.registry, m.logger)
	if err := l.Load(ctx); err != nil {
		m.logger.Error("plugin load failed", "plugin", name, "error", err)
	}
	m.mu.Lock()
	m.lifecycles[name] = l
	m.mu.Unlock()
}

// onConfigChange is the watcher's callback: it diff-reconciles the
// plugin set against newSettings (unload removed plugins, reload
// changed ones, load new ones, restart the health monitor when its
// interval changed), then swaps in the new snapshot last so partial
// failures leave the snapshot-observable state consistent with the
// actions actually taken.
func (m *Manager) onConfigChange(newSettings *config.Settings) {
	m.reactMu.Lock()
	defer m.reactMu.Unlock()

	ctx := context.Background()

	m.mu.Lock()
	oldSettings := m.settings
	m.mu.Unlock()

	oldEnabled := enabledNames(oldSettings)
	newEnabled := enabledNames(newSettings)

	for name := range oldEnabled {
		if _, stillEnabled := newEnabled[name]; !stillEnabled {
			m.UnloadPlugin(ctx, name)
		}
	}

	for name := range oldEnabled {
		if _, stillEnabled := newEnabled[name]; !stillEnabled {
			continue
		}
		oldCfg := oldSettings.Plugins[name]
		newCfg := newSettings.Plugins[name]
		if config.Equal(oldCfg, newCfg) {
			continue
		}
		if err := m.ReloadPlugin(ctx, name, newCfg); err != nil {
			m.logger.Error("plugin reload failed during config change", "plugin", name, "error", err)
		}
	}

	for name := range newEnabled {
		if _, existed := oldEnabled[name]; existed {
			continue
		}
		m.loadPluginLogged(ctx, name, newSettings.Plugins[name])
	}

	oldInterval := oldSettings.PluginSettings.HealthCheckInterval
	newInterval := newSettings.PluginSettings.HealthCheckInterval
	if oldInterval != newInterval {
		// Stop outside m.mu: Stop waits for an in-flight sweep, and a
		// sweep's lister takes m.mu.
		m.mu.Lock()
		monitor := m.monitor
		m.mu.Unlock()
		if monitor != nil {
			monitor.Stop()
		}
		replacement := NewHealthMonitor(time.Duration(newInterval*float64(time.Second)), m.lifecycleList, m.logger)
		m.mu.Lock()
		m.monitor = replacement
		m.mu.Unlock()
		replacement.Start()
	}

	m.mu.Lock()
	m.settings = newSettings
	m.mu.Unlock()
}

func enabledNames(s *config.Settings) map[string]struct{} {
	out := make(map[string]struct{})
	if s == nil {
		return out
	}
	for name, pc := range s.Plugins {
		if pc.Enabled {
			out[name] = struct{}{}
		}
	}
	return out
}
