// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package hydrate

import (
	"context"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/errors"
	"github.com/jllopis/amethyst/pkg/mcp"
)

func TestSchemaEnricher(t *testing.T) {
	server := mcpserver.NewMCPServer("apps", "1.0.0")
	server.AddTool(mcpgo.NewTool("slack-send-message",
		mcpgo.WithString("channel", mcpgo.Required()),
		mcpgo.WithString("text"),
	), func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		return mcpgo.NewToolResultText("sent"), nil
	})
	httpServer := mcpserver.NewTestStreamableHTTPServer(server)
	defer httpServer.Close()

	sessions := mcp.NewSessions(nil)
	defer sessions.Close()

	declared := map[string]any{"type": "object"}
	resources := []*core.Resource{
		{Kind: core.ResourceTool, Name: "post", Provider: core.ProviderExternal, Key: "slack-send-message", ConnectionStatus: core.ConnectionConnected},
		{Kind: core.ResourceTool, Name: "missing", Provider: core.ProviderExternal, ConnectionStatus: core.ConnectionConnected},
		{Kind: core.ResourceTool, Name: "mail", Provider: core.ProviderExternal, Key: "gmail", ConnectionStatus: core.ConnectionNeedsOAuth},
		{Kind: core.ResourceTool, Name: "typed", Provider: core.ProviderExternal, ConnectionStatus: core.ConnectionConnected, Parameters: declared},
		{Kind: core.ResourceTool, Name: "local", Provider: core.ProviderAmethyst},
	}

	report := NewSchemaEnricher(sessions, httpServer.URL, nil).Enrich(context.Background(), resources)

	props, _ := resources[0].Parameters["properties"].(map[string]any)
	if _, ok := props["channel"]; !ok {
		t.Fatalf("schema not attached: %+v", resources[0].Parameters)
	}
	if !errors.Is(report.Failed["missing"], errors.CodeHydrationFailure) {
		t.Fatalf("expected failure for unknown tool, got %v", report.Failed)
	}
	if resources[2].Parameters != nil || resources[4].Parameters != nil {
		t.Fatalf("unconnected or local resources must be skipped")
	}
	if len(resources[3].Parameters) != 1 {
		t.Fatalf("declared parameters overwritten: %+v", resources[3].Parameters)
	}
	if len(report.Hydrated) != 1 || report.Hydrated[0] != "post" {
		t.Fatalf("hydrated = %v", report.Hydrated)
	}
}
