package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/opencuff/opencuff/bridge"
	"github.com/opencuff/opencuff/config"
	"github.com/opencuff/opencuff/manager"
	"github.com/opencuff/opencuff/tool"
)

// runRun starts the manager with the upstream MCP bridge wired in and
// blocks on stdio until the client disconnects or the process is
// signaled.
func runRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var settingsFlag string
	fs.StringVar(&settingsFlag, "settings", "", "path to settings.yml (default: $OPENCUFF_SETTINGS or ./settings.yml)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := slog.Default()
	settingsPath := config.SettingsPath(settingsFlag)

	srv := mcpserver.NewMCPServer(
		"opencuffd",
		version,
		mcpserver.WithRecovery(),
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithResourceCapabilities(false, false),
	)

	// m is assigned below before Start runs; the bridge only invokes
	// this callback once tools are published, which happens after m
	// is set, so the forward reference is safe.
	var m *manager.Manager
	b := bridge.New(srv, func(ctx context.Context, fqn string, callArgs map[string]any) (tool.Result, error) {
		return m.CallTool(ctx, fqn, callArgs)
	}, logger)

	m = manager.New(settingsPath, manager.WithLogger(logger), manager.WithBridge(b))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := m.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: starting manager: %v\n", err)
		return 2
	}
	defer m.Stop(context.Background())

	if err := mcpserver.ServeStdio(srv); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "error: MCP server failed: %v\n", err)
		return 2
	}
	return 0
}
