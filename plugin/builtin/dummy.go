// Package builtin holds the in-process plugins shipped with the
// broker itself, registered under the opencuff.plugins.builtin.*
// namespace so the in-process adapter's default allow-list admits them
// without configuration.
package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/opencuff/opencuff/plugin"
	"github.com/opencuff/opencuff/tool"
)

func init() {
	plugin.Register("opencuff.plugins.builtin.dummy", newDummy)
}

// Dummy exposes echo/add/slow tools for exercising the plugin
// lifecycle and request barrier without any external dependency.
type Dummy struct {
	prefix      string
	config      map[string]any
	initialized bool
}

func newDummy(config map[string]any) (plugin.Plugin, error) {
	d := &Dummy{config: config}
	if p, ok := config["prefix"].(string); ok {
		d.prefix = p
	}
	return d, nil
}

// Initialize re-reads prefix from config, so a reload that changes it
// takes effect.
func (d *Dummy) Initialize(ctx context.Context) error {
	if p, ok := d.config["prefix"].(string); ok {
		d.prefix = p
	}
	d.initialized = true
	return nil
}

func (d *Dummy) Shutdown(ctx context.Context) error {
	d.initialized = false
	return nil
}

func (d *Dummy) HealthCheck(ctx context.Context) bool {
	return d.initialized
}

func (d *Dummy) OnConfigReload(ctx context.Context, config map[string]any) error {
	d.config = config
	return d.Initialize(ctx)
}

type echoParams struct {
	Message string `json:"message" jsonschema:"description=The message to echo,required"`
}

type addParams struct {
	A int `json:"a" jsonschema:"description=First number,required"`
	B int `json:"b" jsonschema:"description=Second number,required"`
}

type slowParams struct {
	Seconds float64 `json:"seconds" jsonschema:"description=Number of seconds to sleep,required"`
}

func (d *Dummy) GetTools() []tool.Descriptor {
	return []tool.Descriptor{
		{
			Name:        "echo",
			Description: "Echo the input message back",
			Parameters:  tool.SchemaFor(&echoParams{}),
			Returns:     map[string]any{"type": "string"},
		},
		{
			Name:        "add",
			Description: "Add two numbers together",
			Parameters:  tool.SchemaFor(&addParams{}),
			Returns:     map[string]any{"type": "integer"},
		},
		{
			Name:        "slow",
			Description: "Sleep for a specified duration then return",
			Parameters:  tool.SchemaFor(&slowParams{}),
			Returns:     map[string]any{"type": "string"},
		},
	}
}

func (d *Dummy) CallTool(ctx context.Context, name string, args map[string]any) (tool.Result, error) {
	if !d.initialized {
		return tool.Err("plugin not initialized"), nil
	}
	switch name {
	case "echo":
		return d.echo(args), nil
	case "add":
		return d.add(args), nil
	case "slow":
		return d.slow(ctx, args)
	default:
		return tool.Err(fmt.Sprintf("unknown tool: %s", name)), nil
	}
}

func (d *Dummy) echo(args map[string]any) tool.Result {
	message, _ := args["message"].(string)
	return tool.Ok(d.prefix + message)
}

func (d *Dummy) add(args map[string]any) tool.Result {
	a, aOK := asInt(args["a"])
	b, bOK := asInt(args["b"])
	if !aOK || !bOK {
		return tool.Err("invalid arguments: a and b must be integers")
	}
	return tool.Ok(a + b)
}

func (d *Dummy) slow(ctx context.Context, args map[string]any) (tool.Result, error) {
	seconds, ok := asFloat(args["seconds"])
	if !ok {
		return tool.Err("invalid arguments: seconds must be a number"), nil
	}
	if seconds < 0 {
		return tool.Err("sleep duration must be non-negative"), nil
	}

	select {
	case <-ctx.Done():
		return tool.Result{}, ctx.Err()
	case <-time.After(time.Duration(seconds * float64(time.Second))):
		return tool.Ok(fmt.Sprintf("slept for %v seconds", seconds)), nil
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
