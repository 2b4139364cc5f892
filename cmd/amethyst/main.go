// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the amethyst CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jllopis/amethyst/pkg/config"
)

var version = "dev"

const (
	exitOK            = 0
	exitFailure       = 1
	exitOAuthRequired = 2
)

type globalFlags struct {
	ConfigPath string
	Sets       []string
	EnvFiles   []string
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	global, args, err := parseGlobalFlags(argv)
	if err != nil {
		printError(stderr, err, false)
		return exitFailure
	}
	if global.Help || len(args) == 0 {
		printUsage(stdout)
		return exitOK
	}

	switch args[0] {
	case "help":
		printUsage(stdout)
		return exitOK
	case "version":
		fmt.Fprintf(stdout, "amethyst %s\n", version)
		return exitOK
	}

	if err := loadEnv(global.EnvFiles); err != nil {
		printError(stderr, err, global.JSON)
		return exitFailure
	}
	cfg, err := config.Load(global.ConfigPath, global.Sets...)
	if err != nil {
		printError(stderr, NewConfigError(err, global.ConfigPath), global.JSON)
		return exitFailure
	}

	switch args[0] {
	case "run":
		return runCommand(ctx, cfg, global, args[1:], stdout, stderr)
	case "plan":
		return runCommand(ctx, cfg, global, append([]string{"-dry-run"}, args[1:]...), stdout, stderr)
	case "validate":
		return validateCommand(global, args[1:], stdout, stderr)
	default:
		printError(stderr, NewInvalidArgumentError("command", fmt.Sprintf("unknown command %q", args[0])), global.JSON)
		return exitFailure
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config" || arg == "--set" || arg == "--env-file":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for %s", arg)
			}
			flags.assign(arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--config="), strings.HasPrefix(arg, "--set="), strings.HasPrefix(arg, "--env-file="):
			name, value, _ := strings.Cut(arg, "=")
			flags.assign(name, value)
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func (f *globalFlags) assign(name, value string) {
	switch name {
	case "--config":
		f.ConfigPath = value
	case "--set":
		f.Sets = append(f.Sets, value)
	case "--env-file":
		f.EnvFiles = append(f.EnvFiles, value)
	}
}

// loadEnv reads .env files into the process environment before the config
// is resolved. Variables already set win. A missing default .env is fine.
func loadEnv(files []string) error {
	if len(files) > 0 {
		return godotenv.Load(files...)
	}
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load()
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: amethyst [global flags] <command> [flags]

Global flags:
  --config <path>       YAML config file
  --set key=value       override a config key (repeatable)
  --env-file <path>     load environment variables from a file (repeatable)
  --json                print errors as JSON

Commands:
  run       execute an application
            -app <path> [-run-id id] [-dry-run] [-format json|pretty]
  plan      parse and hydrate an application without executing it
  validate  check the code of an application
            -app <path>
  version   print the version

Environment variables prefixed with AMETHYST_ override config keys,
e.g. AMETHYST_LLM_PROVIDER=openai.
`)
}
