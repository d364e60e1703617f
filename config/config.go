// Package config defines the typed settings schema and the loader that
// turns a YAML file on disk into it, performing recursive ${NAME}
// environment-variable expansion before validation.
package config

import (
	"os"
	"reflect"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/opencuff/opencuff/errs"
)

// PluginType is the closed set of transports a plugin entry may declare.
type PluginType string

const (
	TypeInSource PluginType = "in_source"
	TypeProcess  PluginType = "process"
	TypeHTTP     PluginType = "http"
)

// ProcessSettings configures the (currently stubbed) process adapter.
type ProcessSettings struct {
	RestartOnCrash bool              `yaml:"restart_on_crash"`
	MaxRestarts    int               `yaml:"max_restarts"`
	RestartDelay   float64           `yaml:"restart_delay"`
	Env            map[string]string `yaml:"env"`
}

// DefaultProcessSettings returns the defaults applied when the settings
// file omits process_settings.
func DefaultProcessSettings() ProcessSettings {
	return ProcessSettings{RestartOnCrash: true, MaxRestarts: 3, RestartDelay: 5.0, Env: map[string]string{}}
}

// HTTPSettings configures the (currently stubbed) HTTP adapter.
type HTTPSettings struct {
	Timeout     float64           `yaml:"timeout"`
	Headers     map[string]string `yaml:"headers"`
	RetryCount  int               `yaml:"retry_count"`
	RetryDelay  float64           `yaml:"retry_delay"`
	VerifySSL   bool              `yaml:"verify_ssl"`
}

// DefaultHTTPSettings returns the defaults applied when the settings
// file omits http_settings.
func DefaultHTTPSettings() HTTPSettings {
	return HTTPSettings{Timeout: 30.0, Headers: map[string]string{}, RetryCount: 3, RetryDelay: 1.0, VerifySSL: true}
}

// PluginConfig is one entry of the `plugins` map in the settings file.
// Only the fields required by Type are consulted; Config is an opaque
// bag handed to the plugin unchanged.
type PluginConfig struct {
	Type             PluginType      `yaml:"type"`
	Enabled          bool            `yaml:"enabled"`
	Module           string          `yaml:"module,omitempty"`
	Command          string          `yaml:"command,omitempty"`
	Args             []string        `yaml:"args,omitempty"`
	Endpoint         string          `yaml:"endpoint,omitempty"`
	Config           map[string]any  `yaml:"config"`
	ProcessSettings  ProcessSettings `yaml:"process_settings"`
	HTTPSettings     HTTPSettings    `yaml:"http_settings"`
}

// PluginSettings holds the broker-wide knobs.
type PluginSettings struct {
	ConfigPollInterval  float64 `yaml:"config_poll_interval"`
	DefaultTimeout      float64 `yaml:"default_timeout"`
	LiveReload          bool    `yaml:"live_reload"`
	HealthCheckInterval float64 `yaml:"health_check_interval"`
}

// DefaultPluginSettings returns the defaults applied when the settings
// file omits plugin_settings.
func DefaultPluginSettings() PluginSettings {
	return PluginSettings{ConfigPollInterval: 5.0, DefaultTimeout: 30.0, LiveReload: true, HealthCheckInterval: 30.0}
}

// Settings is the root of the settings file.
type Settings struct {
	Version        string                  `yaml:"version"`
	PluginSettings PluginSettings          `yaml:"plugin_settings"`
	Plugins        map[string]PluginConfig `yaml:"plugins"`
}

// Default returns the zero-configuration settings document: version "1",
// default plugin settings, no plugins. Used when no settings file and no
// injected Settings is supplied.
func Default() *Settings {
	return &Settings{
		Version:        "1",
		PluginSettings: DefaultPluginSettings(),
		Plugins:        map[string]PluginConfig{},
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars substitutes every ${NAME} occurrence in s with the
// named environment variable, failing config_invalid if any referenced
// variable is unset. A literal '$' not followed by '{' is left alone.
func expandEnvVars(s string) (string, error) {
	var firstErr error
	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		name := match[2 : len(match)-1]
		val, ok := os.LookupEnv(name)
		if !ok {
			firstErr = errs.Newf(errs.ConfigInvalid, "environment variable %q is not set", name)
			return match
		}
		return val
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// expandEnvVarsInValue walks an arbitrary decoded YAML value (maps,
// slices, strings, scalars) applying expandEnvVars recursively to every
// string found. Non-string scalars are untouched.
func expandEnvVarsInValue(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return expandEnvVars(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			expanded, err := expandEnvVarsInValue(sub)
			if err != nil {
				return nil, err
			}
			out[k] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, sub := range val {
			expanded, err := expandEnvVarsInValue(sub)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}

// Load reads path, expands environment variables, and validates the
// result into a *Settings. An empty file is treated as an empty
// settings document (Default()). Missing files fail config_missing;
// malformed YAML or an invalid typed structure fails config_invalid.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Newf(errs.ConfigMissing, "settings file %q does not exist", path).WithCause(err)
		}
		return nil, errs.Newf(errs.ConfigInvalid, "reading settings file %q", path).WithCause(err)
	}

	if len(data) == 0 {
		return Default(), nil
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errs.New(errs.ConfigInvalid, "parsing settings YAML").WithCause(err)
	}
	if raw == nil {
		return Default(), nil
	}

	expanded, err := expandEnvVarsInValue(raw)
	if err != nil {
		return nil, err
	}

	// Round-trip through yaml so field tags apply to the expanded map.
	reencoded, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, errs.New(errs.ConfigInvalid, "re-encoding expanded settings").WithCause(err)
	}

	settings := Default()
	if err := yaml.Unmarshal(reencoded, settings); err != nil {
		return nil, errs.New(errs.ConfigInvalid, "validating settings structure").WithCause(err)
	}

	rawRoot, _ := expanded.(map[string]any)
	rawPlugins, _ := rawRoot["plugins"].(map[string]any)
	for name, pc := range settings.Plugins {
		entry, _ := rawPlugins[name].(map[string]any)
		if _, ok := entry["process_settings"]; !ok {
			pc.ProcessSettings = DefaultProcessSettings()
		}
		if _, ok := entry["http_settings"]; !ok {
			pc.HTTPSettings = DefaultHTTPSettings()
		}
		settings.Plugins[name] = pc
	}

	if err := validate(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// validate checks the typed structure for mismatches the YAML decoder
// itself can't catch: unknown plugin types and type-specific required
// fields. Errors name the offending plugins.<name> path.
func validate(s *Settings) error {
	for name, pc := range s.Plugins {
		switch pc.Type {
		case TypeInSource:
			if pc.Module == "" {
				return errs.Newf(errs.ConfigInvalid, "plugins.%s: type in_source requires a module", name)
			}
		case TypeProcess:
			if pc.Command == "" {
				return errs.Newf(errs.ConfigInvalid, "plugins.%s: type process requires a command", name)
			}
		case TypeHTTP:
			if pc.Endpoint == "" {
				return errs.Newf(errs.ConfigInvalid, "plugins.%s: type http requires an endpoint", name)
			}
		default:
			return errs.Newf(errs.ConfigInvalid, "plugins.%s: unknown plugin type %q", name, pc.Type)
		}
	}
	return nil
}

// SettingsPath resolves the settings file path: an explicit path wins,
// then OPENCUFF_SETTINGS, falling back to ./settings.yml when the env
// var is unset or names a missing file.
func SettingsPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p, ok := os.LookupEnv("OPENCUFF_SETTINGS"); ok {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return "./settings.yml"
}

// Equal reports whether two plugin configs are deep-equal for the
// purpose of the manager's config-diff reconciliation.
func Equal(a, b PluginConfig) bool {
	return reflect.DeepEqual(a, b)
}
