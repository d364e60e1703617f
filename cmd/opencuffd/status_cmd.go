package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/opencuff/opencuff/config"
	"github.com/opencuff/opencuff/manager"
)

const defaultStatusWidth = 100

// runStatus starts the manager once (without the bridge), prints every
// loaded plugin's tools as a column-aligned table, then shuts down; the
// watcher and health monitor that Start launches are stopped again on
// return. Column width comes from the terminal when
// stdout is one, falling back to a fixed width otherwise.
func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	var settingsFlag string
	fs.StringVar(&settingsFlag, "settings", "", "path to settings.yml (default: $OPENCUFF_SETTINGS or ./settings.yml)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	settingsPath := config.SettingsPath(settingsFlag)
	m := manager.New(settingsPath, manager.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))))

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: starting manager: %v\n", err)
		return 2
	}
	defer m.Stop(ctx)

	entries := m.AllTools()
	if len(entries) == 0 {
		fmt.Println("No tools registered.")
		return 0
	}

	width := statusWidth()
	nameCol := width * 3 / 10
	if nameCol < 20 {
		nameCol = 20
	}

	fmt.Printf("%-*s  %s\n", nameCol, "TOOL", "DESCRIPTION")
	for _, e := range entries {
		fqn := e.Plugin + "." + e.Descriptor.Name
		desc := e.Descriptor.Description
		if len(desc) > width-nameCol-2 && width-nameCol-2 > 3 {
			desc = desc[:width-nameCol-5] + "..."
		}
		fmt.Printf("%-*s  %s\n", nameCol, fqn, desc)
	}
	return 0
}

func statusWidth() int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return defaultStatusWidth
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return defaultStatusWidth
	}
	return w
}
