// Package tool defines the immutable value types exchanged between the
// broker and a plugin: the tool descriptor a plugin publishes, and the
// result a tool call produces. Neither type carries behavior; both are
// created once by a plugin and copied freely.
package tool

// Descriptor describes one tool a plugin exposes. Name is unique within
// the owning plugin; Parameters and Returns are JSON-Schema objects
// (Returns may be nil/empty when the tool has no declared return shape).
type Descriptor struct {
	Name        string
	Description string
	Parameters  map[string]any
	Returns     map[string]any
}

// FQN joins a plugin name and a tool's local name into the broker's sole
// external identifier. The "." separator is reserved: neither plugin nor
// tool names may contain it.
func FQN(plugin, name string) string {
	return plugin + "." + name
}

// Result is the outcome of a tool call: discriminated, never both
// populated. A zero Result is neither Ok nor Err; callers should
// construct one with Ok or Err.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Err     string `json:"error,omitempty"`
}

// Ok builds a successful Result carrying data.
func Ok(data any) Result {
	return Result{Success: true, Data: data}
}

// Err builds a failed Result carrying a message.
func Err(message string) Result {
	return Result{Success: false, Err: message}
}
