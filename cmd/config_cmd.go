package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/awake/host/internal/config"
)

func runConfigInit(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("config init", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("config", "", "Where to write the file (default: ~/.awake/config.toml)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}

	target := *path
	if target == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		target = p
	}

	created, err := config.WriteDefault(target)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if created {
		fmt.Fprintf(stdout, "Wrote %s\n", target)
	} else {
		fmt.Fprintf(stdout, "%s already exists; left unchanged\n", target)
	}
	return 0
}

func runConfigShow(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("config show", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("config", "", "Path to config file (default: ~/.awake/config.toml)")
	asYAML := fs.Bool("yaml", false, "Print as YAML instead of TOML")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}

	cfg, err := config.Load(*path)
	if err != nil {
		printError(stderr, err)
		return 1
	}
	snap, err := cfg.Snapshot()
	if err != nil {
		printError(stderr, err)
		return 1
	}
	for _, w := range snap.Warnings {
		fmt.Fprintf(stderr, "Warning: %s\n", w)
	}

	var out []byte
	if *asYAML {
		out, err = config.EncodeYAML(cfg)
	} else {
		out, err = config.EncodeTOML(cfg)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	_, _ = stdout.Write(out)
	return 0
}
