package plugin

import (
	"context"

	"github.com/opencuff/opencuff/errs"
	"github.com/opencuff/opencuff/tool"
)

// HTTPAdapter is declared in the type surface for the `http` plugin
// type but is a stub: its instantiation fails config_invalid until an
// HTTP+JSON transport is implemented.
type HTTPAdapter struct{}

// NewHTTPAdapter always fails until the transport is implemented.
func NewHTTPAdapter(endpoint string, config map[string]any) (*HTTPAdapter, error) {
	return nil, errs.Newf(errs.ConfigInvalid, "plugin type %q (endpoint %q) is not yet implemented", "http", endpoint)
}

func (a *HTTPAdapter) Initialize(ctx context.Context, config map[string]any) error {
	return errs.New(errs.ConfigInvalid, "http adapter not implemented")
}

func (a *HTTPAdapter) GetTools(ctx context.Context) ([]tool.Descriptor, error) {
	return nil, errs.New(errs.ConfigInvalid, "http adapter not implemented")
}

func (a *HTTPAdapter) CallTool(ctx context.Context, name string, args map[string]any) (tool.Result, error) {
	return tool.Result{}, errs.New(errs.ConfigInvalid, "http adapter not implemented")
}

func (a *HTTPAdapter) HealthCheck(ctx context.Context) bool { return false }

func (a *HTTPAdapter) Shutdown(ctx context.Context) error { return nil }

func (a *HTTPAdapter) Reload(ctx context.Context, newConfig map[string]any) error {
	return errs.New(errs.ConfigInvalid, "http adapter not implemented")
}

var _ Adapter = (*HTTPAdapter)(nil)
