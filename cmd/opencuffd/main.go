// Package main is the entry point for the opencuffd broker daemon.
package main

import (
	"os"

	_ "github.com/opencuff/opencuff/plugin/builtin"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the CLI and returns the exit code.
// 0 = clean, 1 = operation-level failure, 2 = usage or setup error.
func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	command := args[0]
	switch command {
	case "run":
		return runRun(args[1:])
	case "status":
		return runStatus(args[1:])
	case "call":
		return runCall(args[1:])
	case "version":
		printVersion()
		return 0
	default:
		os.Stderr.WriteString("unknown command: " + command + "\n")
		printUsage()
		return 2
	}
}

func printUsage() {
	os.Stderr.WriteString(`Usage: opencuffd <command> [flags]

Commands:
  run              Start the plugin manager and upstream bridge, block until signaled
  status           Print loaded plugins and their tools as a table
  call             Invoke one tool and print its result
  version          Print version and exit
`)
}

func printVersion() {
	os.Stdout.WriteString("opencuffd " + version + " (commit: " + commit + ", built: " + date + ")\n")
}
