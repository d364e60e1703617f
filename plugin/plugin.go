// Package plugin defines the plugin-author-facing API (the interface a
// plugin implementation satisfies) and the adapter contract the host
// uses to talk to a loaded plugin regardless of its transport. The
// required surface is deliberately small; lifecycle hooks are optional
// capability interfaces discovered at runtime.
package plugin

import (
	"context"

	"github.com/opencuff/opencuff/tool"
)

// Plugin is the minimum surface every plugin implementation must satisfy:
// an immutable tool list and a dispatcher. Everything else is optional
// and discovered via the capability interfaces below; the defaults are
// empty init/shutdown, always healthy, reload = shutdown + init.
type Plugin interface {
	GetTools() []tool.Descriptor
	CallTool(ctx context.Context, name string, args map[string]any) (tool.Result, error)
}

// Initializer is implemented by plugins that need construction-time
// setup beyond their constructor. Absent, initialization is a no-op.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Shutdowner is implemented by plugins that hold resources needing
// explicit release. Absent, shutdown is a no-op.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// HealthChecker is implemented by plugins with a meaningful liveness
// check. Absent, a plugin is considered healthy whenever it is loaded.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// ConfigReloader is implemented by plugins that can apply a
// configuration change without losing instance identity. Absent, a
// reload is performed as shutdown-then-reconstruct.
type ConfigReloader interface {
	OnConfigReload(ctx context.Context, config map[string]any) error
}

// Constructor builds a Plugin from its merged configuration map. Builtin
// plugins register a Constructor into the compile-time registry
// (see registry.go) under a stable name used as the settings file's
// `module` key.
type Constructor func(config map[string]any) (Plugin, error)
