package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/opencuff/opencuff/config"
	"github.com/opencuff/opencuff/manager"
	"github.com/opencuff/opencuff/tool"
)

// runCall invokes a single tool for scripting use. Arguments arrive as
// a free-form --args JSON blob, parsed with gjson path lookups rather
// than a straight json.Unmarshal so callers can pull a single field
// out of a larger document with --args-path.
func runCall(args []string) int {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	var (
		settingsFlag string
		argsFlag     string
		argsPath     string
	)
	fs.StringVar(&settingsFlag, "settings", "", "path to settings.yml (default: $OPENCUFF_SETTINGS or ./settings.yml)")
	fs.StringVar(&argsFlag, "args", "{}", "JSON object of tool arguments")
	fs.StringVar(&argsPath, "args-path", "", "gjson path into --args to use as the argument object instead of the whole document")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	remaining := fs.Args()
	if len(remaining) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: opencuffd call <plugin.tool> [--args '{...}'] [--args-path <path>]")
		return 2
	}
	fqn := remaining[0]

	argsJSON := argsFlag
	if argsPath != "" {
		result := gjson.Get(argsFlag, argsPath)
		if !result.Exists() {
			fmt.Fprintf(os.Stderr, "error: --args-path %q not found in --args\n", argsPath)
			return 2
		}
		argsJSON = result.Raw
	}

	callArgs, err := parseCallArgs(argsJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: parsing --args: %v\n", err)
		return 2
	}

	requestID := uuid.NewString()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("request_id", requestID)

	settingsPath := config.SettingsPath(settingsFlag)
	m := manager.New(settingsPath, manager.WithLogger(logger))

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: starting manager: %v\n", err)
		return 2
	}
	defer m.Stop(ctx)

	result, err := m.CallTool(ctx, fqn, callArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	printCallResult(result)
	if !result.Success {
		return 1
	}
	return 0
}

// parseCallArgs decodes a JSON object into the map CallTool expects,
// using gjson so a caller can hand it either a compact or indented
// document without any pre-validation step.
func parseCallArgs(argsJSON string) (map[string]any, error) {
	argsJSON = strings.TrimSpace(argsJSON)
	if argsJSON == "" {
		return map[string]any{}, nil
	}
	parsed := gjson.Parse(argsJSON)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("expected a JSON object, got %s", parsed.Type)
	}
	out := make(map[string]any)
	parsed.ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = value.Value()
		return true
	})
	return out, nil
}

// printCallResult renders result as pretty-printed JSON to stdout.
func printCallResult(result tool.Result) {
	data, err := json.Marshal(result)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: encoding result: %v\n", err)
		return
	}
	os.Stdout.Write(pretty.Pretty(data))
}
