// Package errs defines the closed set of error kinds surfaced across the
// plugin broker's public boundary. Every failure that crosses a component
// boundary named in the core design (registry, barrier, lifecycle,
// manager, bridge) is reported as an *Error carrying one of these kinds,
// a human-readable message, and, when applicable, the offending plugin
// name and a chained cause.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of broker error kinds.
type Kind string

const (
	ConfigInvalid       Kind = "config_invalid"
	ConfigMissing       Kind = "config_missing"
	LoadFailed          Kind = "load_failed"
	InitFailed          Kind = "init_failed"
	ShutdownFailed      Kind = "shutdown_failed"
	ToolNotFound        Kind = "tool_not_found"
	ToolExecutionFailed Kind = "tool_execution_failed"
	Timeout             Kind = "timeout"
	CommunicationError  Kind = "communication_error"
	ProtocolError       Kind = "protocol_error"
	HealthCheckFailed   Kind = "health_check_failed"
	PluginUnhealthy     Kind = "plugin_unhealthy"
)

// Error is the structured error type returned across the broker's public
// surface. Plugin is empty when the failure is not attributable to a
// single plugin (e.g. a malformed settings file before any plugin loads).
type Error struct {
	Kind    Kind
	Message string
	Plugin  string
	Cause   error
}

// New builds an Error with no plugin attribution.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithPlugin returns a copy of e attributed to the named plugin.
func (e *Error) WithPlugin(name string) *Error {
	cp := *e
	cp.Plugin = name
	return &cp
}

// WithCause returns a copy of e chaining the given cause.
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.Cause = cause
	return &cp
}

// Error formats as "[plugin] [kind] message" when a plugin is known,
// "[kind] message" otherwise, with the cause appended when present.
func (e *Error) Error() string {
	var prefix string
	if e.Plugin != "" {
		prefix = fmt.Sprintf("[%s] [%s] ", e.Plugin, e.Kind)
	} else {
		prefix = fmt.Sprintf("[%s] ", e.Kind)
	}
	if e.Cause != nil {
		return prefix + e.Message + ": " + e.Cause.Error()
	}
	return prefix + e.Message
}

// Unwrap exposes the chained cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, allowing
// callers to write errors.Is(err, errs.New(errs.ToolNotFound, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
