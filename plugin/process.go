package plugin

import (
	"context"

	"github.com/opencuff/opencuff/errs"
	"github.com/opencuff/opencuff/tool"
)

// ProcessAdapter is declared in the type surface for the `process`
// plugin type but is a stub: its instantiation fails config_invalid
// until an out-of-process transport is implemented. A real
// implementation would speak JSON over the subprocess's stdin/stdout.
type ProcessAdapter struct{}

// NewProcessAdapter always fails until the transport is implemented.
func NewProcessAdapter(command string, args []string, config map[string]any) (*ProcessAdapter, error) {
	return nil, errs.Newf(errs.ConfigInvalid, "plugin type %q (command %q) is not yet implemented", "process", command)
}

func (a *ProcessAdapter) Initialize(ctx context.Context, config map[string]any) error {
	return errs.New(errs.ConfigInvalid, "process adapter not implemented")
}

func (a *ProcessAdapter) GetTools(ctx context.Context) ([]tool.Descriptor, error) {
	return nil, errs.New(errs.ConfigInvalid, "process adapter not implemented")
}

func (a *ProcessAdapter) CallTool(ctx context.Context, name string, args map[string]any) (tool.Result, error) {
	return tool.Result{}, errs.New(errs.ConfigInvalid, "process adapter not implemented")
}

func (a *ProcessAdapter) HealthCheck(ctx context.Context) bool { return false }

func (a *ProcessAdapter) Shutdown(ctx context.Context) error { return nil }

func (a *ProcessAdapter) Reload(ctx context.Context, newConfig map[string]any) error {
	return errs.New(errs.ConfigInvalid, "process adapter not implemented")
}

var _ Adapter = (*ProcessAdapter)(nil)
