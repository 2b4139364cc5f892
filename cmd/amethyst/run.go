// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"time"

	"github.com/jllopis/amethyst/pkg/app"
	"github.com/jllopis/amethyst/pkg/config"
	"github.com/jllopis/amethyst/pkg/engine"
	"github.com/jllopis/amethyst/pkg/telemetry"
)

type runFlags struct {
	AppPath string
	RunID   string
	DryRun  bool
	Format  string
}

func parseRunFlags(args []string, stderr io.Writer) (runFlags, error) {
	var f runFlags
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.AppPath, "app", "", "application manifest (yaml or json)")
	fs.StringVar(&f.RunID, "run-id", "", "run identifier; reuse it to resume from a checkpoint")
	fs.BoolVar(&f.DryRun, "dry-run", false, "parse and hydrate without executing")
	fs.StringVar(&f.Format, "format", "pretty", "event output format: pretty or json")
	if err := fs.Parse(args); err != nil {
		return f, NewInvalidArgumentError("run", err.Error())
	}
	if f.AppPath == "" {
		return f, NewInvalidArgumentError("app", "-app is required")
	}
	if f.Format != "pretty" && f.Format != "json" {
		return f, NewInvalidArgumentError("format", "-format must be pretty or json")
	}
	return f, nil
}

func runCommand(ctx context.Context, cfg *config.Config, global globalFlags, args []string, stdout, stderr io.Writer) int {
	flags, err := parseRunFlags(args, stderr)
	if err != nil {
		printError(stderr, err, global.JSON)
		return exitFailure
	}

	logger := telemetry.ConfigureSlog(stderr, cfg.Log.Level, cfg.Log.Format)
	shutdown, err := telemetry.Init(ctx, "amethyst", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		Output:       stderr,
	})
	if err != nil {
		printError(stderr, err, global.JSON)
		return exitFailure
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	a, err := app.Load(flags.AppPath)
	if err != nil {
		printError(stderr, err, global.JSON)
		return exitFailure
	}

	sink := newEventSink(flags.Format, stdout)
	eng, cleanup, err := buildEngine(ctx, cfg, sink, logger)
	if err != nil {
		printError(stderr, err, global.JSON)
		return exitFailure
	}
	defer cleanup()

	if flags.DryRun {
		preview, err := eng.Plan(ctx, a)
		if err != nil {
			printError(stderr, err, global.JSON)
			return exitFailure
		}
		printPreview(stdout, preview, flags.Format)
		for _, f := range preview.Files {
			if len(f.NeedsOAuth) > 0 {
				return exitOAuthRequired
			}
		}
		return exitOK
	}

	res, err := eng.Run(ctx, a, flags.RunID)
	if res != nil {
		printResult(stdout, res, flags.Format)
	}
	if err != nil {
		printError(stderr, err, global.JSON)
		return exitFailure
	}
	if res.Status == engine.StatusOAuthRequired {
		return exitOAuthRequired
	}
	return exitOK
}
