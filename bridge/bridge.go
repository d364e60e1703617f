// Package bridge keeps the upstream MCP server's published tool set
// synchronized with the tool registry. A single lock serializes every
// bridge mutation so add/remove operations never interleave against
// the upstream host; FullSync reconciles stale or missing publications
// once at startup.
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/opencuff/opencuff/tool"
	"github.com/opencuff/opencuff/toolregistry"
)

// CallTool is the manager operation the bridge forwards every
// published tool invocation to: fqn is the fully-qualified tool name,
// args the keyword map the upstream host collected from the caller.
type CallTool func(ctx context.Context, fqn string, args map[string]any) (tool.Result, error)

// MCPBridge is the concrete upstream bridge backed by an
// *mcpserver.MCPServer. The zero value is not usable; construct with
// New.
type MCPBridge struct {
	srv      *mcpserver.MCPServer
	callTool CallTool
	logger   *slog.Logger

	mu        sync.Mutex
	published map[string]bool
}

// New wraps an existing *mcpserver.MCPServer. callTool is invoked for
// every tool call the upstream host dispatches to a published tool.
func New(srv *mcpserver.MCPServer, callTool CallTool, logger *slog.Logger) *MCPBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &MCPBridge{
		srv:       srv,
		callTool:  callTool,
		logger:    logger,
		published: make(map[string]bool),
	}
}

// OnRegistered implements the registry's registration callback: it
// publishes each tool under its FQN. Per-tool publication errors are
// logged and skipped; other tools in the batch still publish.
func (b *MCPBridge) OnRegistered(plugin string, tools []tool.Descriptor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range tools {
		fqn := tool.FQN(plugin, t.Name)
		if err := b.publishLocked(fqn, t); err != nil {
			b.logger.Error("tool publication failed", "fqn", fqn, "error", err)
			continue
		}
		b.published[fqn] = true
	}
}

// OnUnregistered implements the registry's unregistration callback: it
// removes every previously-published FQN beginning with "{plugin}.".
func (b *MCPBridge) OnUnregistered(plugin string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	prefix := plugin + "."
	var toRemove []string
	for fqn := range b.published {
		if strings.HasPrefix(fqn, prefix) {
			toRemove = append(toRemove, fqn)
		}
	}
	if len(toRemove) == 0 {
		return
	}
	b.srv.DeleteTools(toRemove...)
	for _, fqn := range toRemove {
		delete(b.published, fqn)
	}
}

// FullSync reconciles the bridge's published set against the registry
// once at startup: anything externally published but absent from the
// registry is removed, anything in the registry not yet published is
// published. Heals state for plugins the manager loaded before the
// bridge subscribed to registry callbacks.
func (b *MCPBridge) FullSync(registry *toolregistry.Registry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := registry.ListTools()
	want := make(map[string]toolregistry.Entry, len(entries))
	for _, e := range entries {
		want[tool.FQN(e.Plugin, e.Descriptor.Name)] = e
	}

	var stale []string
	for fqn := range b.published {
		if _, ok := want[fqn]; !ok {
			stale = append(stale, fqn)
		}
	}
	if len(stale) > 0 {
		b.srv.DeleteTools(stale...)
		for _, fqn := range stale {
			delete(b.published, fqn)
		}
	}

	for fqn, e := range want {
		if b.published[fqn] {
			continue
		}
		if err := b.publishLocked(fqn, e.Descriptor); err != nil {
			b.logger.Error("tool publication failed during full sync", "fqn", fqn, "error", err)
			continue
		}
		b.published[fqn] = true
	}
}

// Published reports the bridge's current published FQN set, used by
// tests asserting it mirrors the registry's contents.
func (b *MCPBridge) Published() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.published))
	for fqn := range b.published {
		out = append(out, fqn)
	}
	return out
}

func (b *MCPBridge) publishLocked(fqn string, desc tool.Descriptor) error {
	schema, err := json.Marshal(normalizeSchema(desc.Parameters))
	if err != nil {
		return err
	}
	mcpTool := mcp.NewToolWithRawSchema(fqn, desc.Description, schema)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		result, err := b.callTool(ctx, fqn, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !result.Success {
			return mcp.NewToolResultError(result.Err), nil
		}
		return toolResultFor(result.Data), nil
	}

	b.srv.AddTool(mcpTool, handler)
	return nil
}

// normalizeSchema ensures every published tool carries at least a
// minimal object schema; nil Parameters become an empty-object schema
// so upstream hosts that require a schema object don't choke.
func normalizeSchema(params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return params
}

// toolResultFor converts a tool.Result's success payload into an
// mcp.CallToolResult: strings pass through as text, everything else is
// JSON-encoded.
func toolResultFor(data any) *mcp.CallToolResult {
	if s, ok := data.(string); ok {
		return mcp.NewToolResultText(s)
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(encoded))
}
