package plugin

import (
	"context"

	"github.com/opencuff/opencuff/tool"
)

// Adapter is the uniform operation set the host drives regardless of a
// plugin's transport (in-process, subprocess, HTTP). Exactly one
// Initialize precedes any GetTools/CallTool; Shutdown is idempotent.
type Adapter interface {
	Initialize(ctx context.Context, config map[string]any) error
	GetTools(ctx context.Context) ([]tool.Descriptor, error)
	CallTool(ctx context.Context, name string, args map[string]any) (tool.Result, error)
	HealthCheck(ctx context.Context) bool
	Shutdown(ctx context.Context) error
	// Reload prefers retaining instance identity via the plugin's
	// ConfigReloader hook; if the adapter cannot offer that, it falls
	// back to Shutdown+Initialize.
	Reload(ctx context.Context, newConfig map[string]any) error
}
