package plugin

import (
	"log/slog"

	"github.com/opencuff/opencuff/config"
	"github.com/opencuff/opencuff/errs"
)

// NewAdapter dispatches on pc.Type to build the adapter for a plugin
// configuration entry.
func NewAdapter(pc config.PluginConfig, logger *slog.Logger) (Adapter, error) {
	switch pc.Type {
	case config.TypeInSource:
		// pc.Config reaches the plugin through Initialize and Reload; it
		// is not passed as construction config, which would outrank every
		// later reload's values.
		return NewInProcessAdapter(pc.Module, nil, nil, logger)
	case config.TypeProcess:
		return NewProcessAdapter(pc.Command, pc.Args, pc.Config)
	case config.TypeHTTP:
		return NewHTTPAdapter(pc.Endpoint, pc.Config)
	default:
		return nil, errs.Newf(errs.ConfigInvalid, "unknown plugin type %q", pc.Type)
	}
}
