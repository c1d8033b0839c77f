package main

import (
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags.
// Example: go build -ldflags="-X main.Version=v0.1.0" -o awake ./cmd
var Version = "dev"

const usage = `awake - keep the computer awake on demand, on a schedule, or while apps run

Usage:
  awake <command> [options]

Commands:
  daemon        Run the activation daemon in the foreground
  status        Show the current session
  on            Start a manual session (--duration, --allow-display-sleep)
  off           End the current session whatever started it
  toggle        Press the keyboard shortcut (bind your desktop hotkey to this)
  watch         Stream session changes until interrupted
  config init   Write a starter config file
  config show   Print the effective configuration
  version       Print the version
Run 'awake <command> --help' for more information on a command.
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprint(stdout, usage)
		return 0
	}

	switch args[1] {
	case "daemon":
		return runDaemon(args[2:], stdout, stderr)
	case "status":
		return runStatus(args[2:], stdout, stderr)
	case "on":
		return runOn(args[2:], stdout, stderr)
	case "off":
		return runOff(args[2:], stdout, stderr)
	case "toggle":
		return runToggle(args[2:], stdout, stderr)
	case "watch":
		return runWatch(args[2:], stdout, stderr)
	case "config":
		if len(args) < 3 {
			fmt.Fprintln(stdout, "Usage: awake config <init|show>")
			return 1
		}
		switch args[2] {
		case "init":
			return runConfigInit(args[3:], stdout, stderr)
		case "show":
			return runConfigShow(args[3:], stdout, stderr)
		default:
			fmt.Fprintf(stdout, "Unknown config command: %s\n", args[2])
			return 1
		}
	case "--help", "-h", "help":
		fmt.Fprint(stdout, usage)
		return 0
	case "--version", "-v", "version":
		fmt.Fprintf(stdout, "awake %s\n", Version)
		return 0
	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n", args[1])
		fmt.Fprint(stdout, usage)
		return 1
	}
}
