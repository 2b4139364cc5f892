// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jllopis/amethyst/pkg/caller"
	"github.com/jllopis/amethyst/pkg/config"
	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/engine"
	"github.com/jllopis/amethyst/pkg/hydrate"
	"github.com/jllopis/amethyst/pkg/interpreter"
	"github.com/jllopis/amethyst/pkg/llm"
	"github.com/jllopis/amethyst/pkg/mcp"
	"github.com/jllopis/amethyst/pkg/memory"
	"github.com/jllopis/amethyst/pkg/resilience"
	"github.com/jllopis/amethyst/pkg/telemetry"
)

// buildEngine assembles an engine from cfg. The returned cleanup releases
// sessions, stores and provider clients.
func buildEngine(ctx context.Context, cfg *config.Config, sink core.Sink, logger *slog.Logger) (*engine.Engine, func(), error) {
	var closers []io.Closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Warn("cleanup failed", slog.String("error", err.Error()))
			}
		}
	}

	provider, err := llm.New(ctx, llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
	})
	if err != nil {
		return nil, cleanup, err
	}
	if c, ok := provider.(io.Closer); ok {
		closers = append(closers, c)
	}

	sessions := mcp.NewSessions(connectHeaders(cfg.Connect), mcp.WithTimeout(cfg.MCP.Timeout))
	closers = append(closers, sessions)

	router := &caller.Router{
		Tools:    caller.NewHTTPToolCaller(caller.WithTimeout(cfg.Engine.CallTimeout)),
		Agents:   caller.NewA2AAgentCaller(caller.WithTimeout(cfg.Engine.CallTimeout)),
		External: caller.NewMCPCaller(sessions, cfg.MCP.URL),
	}

	retry := resilience.ForRetries(cfg.Hydration.Retries)
	opts := []engine.Option{
		engine.WithCaller(router),
		engine.WithInterpreter(interpreter.LLMFactory(provider,
			interpreter.WithModel(cfg.LLM.Model),
			interpreter.WithTemperature(cfg.LLM.Temperature),
			interpreter.WithLogger(logger),
		)),
		engine.WithSink(sink),
		engine.WithHydrator(hydrate.New(cfg.Hydration.BaseURL,
			hydrate.WithRetry(retry),
			hydrate.WithLogger(logger),
		)),
		engine.WithCallTimeout(cfg.Engine.CallTimeout),
		engine.WithMaxIterations(cfg.Engine.MaxIterations),
		engine.WithContextWindow(cfg.Engine.ContextWindow),
		engine.WithLogger(logger),
	}

	if cfg.Connect.Configured() {
		enricher, err := hydrate.NewConnectEnricher(hydrate.ConnectConfig{
			BaseURL:        cfg.Connect.BaseURL,
			ProjectID:      cfg.Connect.ProjectID,
			Environment:    cfg.Connect.Environment,
			ExternalUserID: cfg.Connect.ExternalUserID,
			Token:          cfg.Connect.Token,
		}, hydrate.WithConnectRetry(retry), hydrate.WithConnectLogger(logger))
		if err != nil {
			return nil, cleanup, err
		}
		opts = append(opts, engine.WithEnricher(enricher))
	}

	opts = append(opts, engine.WithSchemas(hydrate.NewSchemaEnricher(sessions, cfg.MCP.URL, logger)))

	switch cfg.Memory.Store {
	case "file":
		store, err := memory.NewFileStore(cfg.Memory.Path)
		if err != nil {
			return nil, cleanup, err
		}
		opts = append(opts, engine.WithStore(store))
	case "sqlite":
		if err := os.MkdirAll(cfg.Memory.Path, 0o755); err != nil {
			return nil, cleanup, err
		}
		store, err := memory.OpenSQLiteStore(filepath.Join(cfg.Memory.Path, "checkpoints.db"))
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, store)
		opts = append(opts, engine.WithStore(store))
	}

	metrics, err := telemetry.NewEngineMetrics()
	if err != nil {
		logger.Warn("engine metrics disabled", slog.String("error", err.Error()))
	} else {
		opts = append(opts, engine.WithMetrics(metrics))
	}

	eng, err := engine.New(opts...)
	if err != nil {
		return nil, cleanup, err
	}
	return eng, cleanup, nil
}

// connectHeaders are sent to the MCP server of external resources.
func connectHeaders(c config.ConnectConfig) map[string]string {
	headers := map[string]string{}
	if c.Token != "" {
		headers["Authorization"] = "Bearer " + c.Token
	}
	if c.ProjectID != "" {
		headers["x-pd-project-id"] = c.ProjectID
	}
	if c.Environment != "" {
		headers["x-pd-environment"] = c.Environment
	}
	if c.ExternalUserID != "" {
		headers["x-pd-external-user-id"] = c.ExternalUserID
	}
	return headers
}
