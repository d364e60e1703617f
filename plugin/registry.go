package plugin

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// builtinRegistry is the compile-time name->constructor map behind the
// settings file's `module` key. Each builtin plugin package registers
// itself here from an init() function; the module path is an opaque
// key into this map rather than anything dynamically loaded.
var builtinRegistry = struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}{ctors: make(map[string]Constructor)}

// Register adds a constructor to the compile-time registry under name.
// Intended to be called from a builtin plugin package's init(); panics
// on a duplicate name since that indicates a programming error, not a
// runtime condition.
func Register(name string, ctor Constructor) {
	builtinRegistry.mu.Lock()
	defer builtinRegistry.mu.Unlock()
	if _, exists := builtinRegistry.ctors[name]; exists {
		panic(fmt.Sprintf("plugin: duplicate registration for module %q", name))
	}
	builtinRegistry.ctors[name] = ctor
}

// Lookup returns the constructor registered under name, if any.
func Lookup(name string) (Constructor, bool) {
	builtinRegistry.mu.RLock()
	defer builtinRegistry.mu.RUnlock()
	ctor, ok := builtinRegistry.ctors[name]
	return ctor, ok
}

// RegisteredModules returns the sorted list of module names currently
// registered.
func RegisteredModules() []string {
	builtinRegistry.mu.RLock()
	defer builtinRegistry.mu.RUnlock()
	names := make([]string, 0, len(builtinRegistry.ctors))
	for name := range builtinRegistry.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultAllowedPrefixes restricts module paths to the project's own
// builtin namespace unless a caller supplies its own allow-list.
var DefaultAllowedPrefixes = []string{"opencuff.plugins.builtin."}

// validateModulePath reports whether module starts with one of the
// allowed namespace prefixes. NewInProcessAdapter turns a false result
// into config_invalid before any loading is attempted.
func validateModulePath(module string, allowedPrefixes []string) bool {
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(module, prefix) {
			return true
		}
	}
	return false
}
