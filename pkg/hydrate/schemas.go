// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package hydrate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/errors"
	"github.com/jllopis/amethyst/pkg/mcp"
)

// SchemaEnricher attaches the argument schema advertised by the MCP server
// to connected external tools that do not declare parameters, so the
// interpreter can fill in their input.
type SchemaEnricher struct {
	sessions   *mcp.Sessions
	defaultURL string
	logger     *slog.Logger
}

// NewSchemaEnricher uses sessions to list tools. defaultURL serves
// resources without their own url.
func NewSchemaEnricher(sessions *mcp.Sessions, defaultURL string, logger *slog.Logger) *SchemaEnricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaEnricher{sessions: sessions, defaultURL: defaultURL, logger: logger}
}

// Enrich implements Enricher. Resources that are not connected, already
// carry parameters or have no server are skipped.
func (e *SchemaEnricher) Enrich(ctx context.Context, resources []*core.Resource) Report {
	var report Report
	for _, res := range resources {
		if res == nil || res.Provider != core.ProviderExternal || res.Kind != core.ResourceTool {
			continue
		}
		if res.ConnectionStatus != core.ConnectionConnected || res.Parameters != nil {
			continue
		}
		url := strings.TrimSpace(res.URL)
		if url == "" {
			url = e.defaultURL
		}
		if url == "" {
			continue
		}
		params, err := e.schema(ctx, url, res)
		if err != nil {
			e.logger.WarnContext(ctx, "mcp schema lookup failed",
				slog.String("resource", res.Name),
				slog.String("url", url),
				slog.String("error", err.Error()),
			)
			report.fail(res.Name, err)
			continue
		}
		res.Parameters = params
		report.Hydrated = append(report.Hydrated, res.Name)
	}
	return report
}

func (e *SchemaEnricher) schema(ctx context.Context, url string, res *core.Resource) (map[string]any, error) {
	name := res.Key
	if name == "" {
		name = res.Name
	}
	session, err := e.sessions.Get(ctx, url)
	if err != nil {
		return nil, errors.New(errors.CodeHydrationFailure, "open mcp session", err).WithContext("resource", res.Name)
	}
	tool, ok, err := session.Tool(ctx, name)
	if err != nil {
		e.sessions.Drop(url)
		return nil, errors.New(errors.CodeHydrationFailure, "list mcp tools", err).WithContext("resource", res.Name)
	}
	if !ok {
		return nil, errors.Newf(errors.CodeHydrationFailure, "mcp server has no tool %q", name).WithContext("resource", res.Name)
	}
	params, err := mcp.InputSchema(tool)
	if err != nil {
		return nil, errors.New(errors.CodeHydrationFailure, "decode mcp tool schema", err).WithContext("resource", res.Name)
	}
	return params, nil
}
