// Package toolregistry implements the in-memory tool table keyed by
// fully-qualified name ("{plugin}.{tool}"). Registration is atomic per
// batch, unregistration is idempotent, and change callbacks fire
// outside the table's lock.
package toolregistry

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/opencuff/opencuff/errs"
	"github.com/opencuff/opencuff/tool"
)

// Entry pairs a tool descriptor with the plugin that owns it.
type Entry struct {
	Plugin     string
	Descriptor tool.Descriptor
}

// OnRegistered is invoked after a successful batch registration, outside
// the registry's lock, so it may itself call back into the registry.
type OnRegistered func(plugin string, tools []tool.Descriptor)

// OnUnregistered is invoked after a plugin's tools are removed, outside
// the registry's lock, and only when at least one entry was removed.
type OnUnregistered func(plugin string)

// Registry is the namespaced tool table. The zero value is not usable;
// construct with New.
type Registry struct {
	logger *slog.Logger

	mu    sync.RWMutex
	tools map[string]Entry // fqn -> entry

	onRegistered   OnRegistered
	onUnregistered OnUnregistered
}

// New constructs an empty Registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger, tools: make(map[string]Entry)}
}

// SetCallbacks installs the registration/unregistration callbacks under
// the registry lock; a RegisterTools/UnregisterPlugin already past its
// own lock fires whichever callback it read there.
func (r *Registry) SetCallbacks(onRegistered OnRegistered, onUnregistered OnUnregistered) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRegistered = onRegistered
	r.onUnregistered = onUnregistered
}

// RegisterTools atomically adds every tool in the batch under plugin, or
// none of them. Fails config_invalid if any tool name contains the
// reserved "." separator, if two tools in the batch share a local name,
// or if any proposed FQN is already present (from this plugin or
// another).
func (r *Registry) RegisterTools(plugin string, tools []tool.Descriptor) error {
	r.mu.Lock()

	seen := make(map[string]bool, len(tools))
	for _, t := range tools {
		if strings.Contains(t.Name, ".") {
			r.mu.Unlock()
			return errs.Newf(errs.ConfigInvalid, "tool name %q must not contain '.'", t.Name).WithPlugin(plugin)
		}
		if seen[t.Name] {
			r.mu.Unlock()
			return errs.Newf(errs.ConfigInvalid, "duplicate tool name %q in plugin's own tool list", t.Name).WithPlugin(plugin)
		}
		seen[t.Name] = true

		fqn := tool.FQN(plugin, t.Name)
		if _, exists := r.tools[fqn]; exists {
			r.mu.Unlock()
			return errs.Newf(errs.ConfigInvalid, "tool %q is already registered", fqn).WithPlugin(plugin)
		}
	}

	for _, t := range tools {
		fqn := tool.FQN(plugin, t.Name)
		r.tools[fqn] = Entry{Plugin: plugin, Descriptor: t}
	}

	cb := r.onRegistered
	r.mu.Unlock()

	if cb != nil {
		safeCall(r.logger, "tool_registered_callback", plugin, func() { cb(plugin, tools) })
	}
	return nil
}

// UnregisterPlugin removes every FQN with prefix "{plugin}.". Idempotent
// and never fails; invokes onUnregistered only when something was
// actually removed.
func (r *Registry) UnregisterPlugin(plugin string) {
	r.mu.Lock()
	prefix := plugin + "."
	removed := false
	for fqn := range r.tools {
		if strings.HasPrefix(fqn, prefix) {
			delete(r.tools, fqn)
			removed = true
		}
	}
	cb := r.onUnregistered
	r.mu.Unlock()

	if removed && cb != nil {
		safeCall(r.logger, "tool_unregistered_callback", plugin, func() { cb(plugin) })
	}
}

// GetTool looks up a single FQN. The returned Entry's Descriptor is
// immutable, so this read does not need the write lock's exclusivity;
// RWMutex.RLock is still used to synchronize with concurrent writers.
func (r *Registry) GetTool(fqn string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[fqn]
	return e, ok
}

// ListTools returns a snapshot of every registered entry, sorted by FQN
// for deterministic output (status CLI, tests).
func (r *Registry) ListTools() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return tool.FQN(out[i].Plugin, out[i].Descriptor.Name) < tool.FQN(out[j].Plugin, out[j].Descriptor.Name)
	})
	return out
}

// ToolsFor returns a snapshot of entries owned by plugin.
func (r *Registry) ToolsFor(plugin string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prefix := plugin + "."
	var out []Entry
	for fqn, e := range r.tools {
		if strings.HasPrefix(fqn, prefix) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Descriptor.Name < out[j].Descriptor.Name })
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Contains reports whether fqn is currently registered.
func (r *Registry) Contains(fqn string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[fqn]
	return ok
}

// safeCall invokes fn, logging and swallowing any panic so a
// misbehaving callback never alters the registry's outcome.
func safeCall(logger *slog.Logger, event, plugin string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(event+" panicked", "plugin", plugin, "panic", r)
		}
	}()
	fn()
}
