package plugin

import (
	"context"
	"log/slog"
	"sync"

	"github.com/opencuff/opencuff/errs"
	"github.com/opencuff/opencuff/tool"
)

// InProcessAdapter loads a plugin implementation from the compile-time
// registry by its module key, mediating every call the host makes
// against the underlying Plugin. It is the only adapter variant fully
// implemented by this spec; Process and HTTP are present as stubs
// (process.go, http.go).
type InProcessAdapter struct {
	module          string
	allowedPrefixes []string
	logger          *slog.Logger

	mu           sync.Mutex
	plugin       Plugin
	construction map[string]any // construction-time config; wins on merge, never mutated
	inited       bool
}

// NewInProcessAdapter validates module against allowedPrefixes
// immediately, before any loading occurs. constructionConfig is the
// adapter's own config (distinct from the config handed to
// Initialize); it takes precedence on key conflicts.
func NewInProcessAdapter(module string, constructionConfig map[string]any, allowedPrefixes []string, logger *slog.Logger) (*InProcessAdapter, error) {
	if allowedPrefixes == nil {
		allowedPrefixes = DefaultAllowedPrefixes
	}
	if !validateModulePath(module, allowedPrefixes) {
		return nil, errs.Newf(errs.ConfigInvalid, "module %q is outside the allowed namespace prefixes %v", module, allowedPrefixes)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessAdapter{
		module:          module,
		allowedPrefixes: allowedPrefixes,
		logger:          logger,
		construction:    constructionConfig,
	}, nil
}

// Initialize resolves the constructor, merges configs (construction
// config wins on conflicting keys), constructs the plugin, and runs its
// optional Initializer hook.
func (a *InProcessAdapter) Initialize(ctx context.Context, config map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctor, ok := Lookup(a.module)
	if !ok {
		return errs.Newf(errs.LoadFailed, "no plugin registered for module %q", a.module)
	}

	merged := mergeConfig(config, a.construction)

	p, err := ctor(merged)
	if err != nil {
		return errs.New(errs.LoadFailed, "constructing plugin").WithCause(err)
	}

	if initializer, ok := p.(Initializer); ok {
		if err := initializer.Initialize(ctx); err != nil {
			return errs.New(errs.InitFailed, "plugin initializer failed").WithCause(err)
		}
	}

	a.plugin = p
	a.inited = true
	return nil
}

// mergeConfig overlays base with override; override's keys win,
// matching "construction config wins on conflicts".
func mergeConfig(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

func (a *InProcessAdapter) GetTools(ctx context.Context) ([]tool.Descriptor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.inited || a.plugin == nil {
		return nil, errs.New(errs.PluginUnhealthy, "adapter not initialized")
	}
	return a.plugin.GetTools(), nil
}

func (a *InProcessAdapter) CallTool(ctx context.Context, name string, args map[string]any) (tool.Result, error) {
	a.mu.Lock()
	p := a.plugin
	inited := a.inited
	a.mu.Unlock()

	if !inited || p == nil {
		return tool.Result{}, errs.New(errs.PluginUnhealthy, "adapter not initialized")
	}
	return p.CallTool(ctx, name, args)
}

func (a *InProcessAdapter) HealthCheck(ctx context.Context) bool {
	a.mu.Lock()
	p := a.plugin
	inited := a.inited
	a.mu.Unlock()

	if !inited || p == nil {
		return false
	}
	checker, ok := p.(HealthChecker)
	if !ok {
		return true
	}
	return checker.HealthCheck(ctx)
}

// Shutdown is idempotent and always reaches the "unloaded" steady state
// even when the plugin's own shutdown hook errors; such errors are
// logged and swallowed.
func (a *InProcessAdapter) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.plugin == nil {
		a.inited = false
		return nil
	}

	if shutdowner, ok := a.plugin.(Shutdowner); ok {
		if err := shutdowner.Shutdown(ctx); err != nil {
			a.logger.Warn("plugin shutdown error", "module", a.module, "error", err)
		}
	}

	a.plugin = nil
	a.inited = false
	return nil
}

// Reload prefers the plugin's ConfigReloader hook, which retains
// instance identity; if the plugin doesn't implement it, Reload
// performs shutdown-then-reconstruct via Shutdown+Initialize.
func (a *InProcessAdapter) Reload(ctx context.Context, newConfig map[string]any) error {
	a.mu.Lock()
	p := a.plugin
	a.mu.Unlock()

	if p == nil {
		return errs.New(errs.PluginUnhealthy, "adapter not initialized")
	}

	if reloader, ok := p.(ConfigReloader); ok {
		merged := mergeConfig(newConfig, a.construction)
		if err := reloader.OnConfigReload(ctx, merged); err != nil {
			return errs.New(errs.InitFailed, "plugin config reload failed").WithCause(err)
		}
		return nil
	}

	if err := a.Shutdown(ctx); err != nil {
		return err
	}
	return a.Initialize(ctx, newConfig)
}

var _ Adapter = (*InProcessAdapter)(nil)
