package tool

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// reflector is shared across every SchemaFor call so built-in plugins
// don't each pay for constructing their own. Structs are expanded
// inline without $ref/$defs, and AllowAdditionalProperties keeps the
// reflector from emitting "additionalProperties": false.
var reflector = &jsonschema.Reflector{
	ExpandedStruct:            true,
	DoNotReference:            true,
	AllowAdditionalProperties: true,
}

// SchemaFor derives a JSON-Schema object for v via struct reflection,
// for plugins that declare tool parameters/returns as plain Go structs
// with `json`/`jsonschema` tags instead of hand-building map literals.
// v is typically a pointer to a zero-value struct, e.g.
// SchemaFor(&EchoParams{}).
func SchemaFor(v any) map[string]any {
	schema := reflector.Reflect(v)
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}
