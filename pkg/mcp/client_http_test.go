// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/amethyst/pkg/errors"
)

func newTestServer(t *testing.T) string {
	t.Helper()
	server := mcpserver.NewMCPServer("test-http", "1.0.0")
	server.AddTool(mcpgo.NewTool("ping"), func(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		return &mcpgo.CallToolResult{
			Content: []mcpgo.Content{mcpgo.TextContent{Type: "text", Text: "pong"}},
		}, nil
	})
	server.AddTool(mcpgo.NewTool("fail"), func(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		return &mcpgo.CallToolResult{
			IsError: true,
			Content: []mcpgo.Content{mcpgo.TextContent{Type: "text", Text: "quota exceeded"}},
		}, nil
	})

	httpServer := mcpserver.NewTestStreamableHTTPServer(server)
	t.Cleanup(httpServer.Close)
	return httpServer.URL
}

func TestDialListAndCall(t *testing.T) {
	url := newTestServer(t)

	client, err := Dial(context.Background(), url, map[string]string{"X-Test": "1"})
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer client.Close()

	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools error: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %+v", tools)
	}

	res, err := client.CallTool(context.Background(), "ping", nil)
	if err != nil {
		t.Fatalf("CallTool error: %v", err)
	}
	value, err := ResultValue(res)
	if err != nil || value != "pong" {
		t.Fatalf("value = %v, %v", value, err)
	}

	res, err = client.CallTool(context.Background(), "fail", nil)
	if err != nil {
		t.Fatalf("CallTool error: %v", err)
	}
	if _, err := ResultValue(res); !errors.Is(err, errors.CodeCallError) {
		t.Fatalf("expected call error, got %v", err)
	}
}

func TestSessionsReuse(t *testing.T) {
	url := newTestServer(t)
	sessions := NewSessions(nil)
	defer sessions.Close()

	a, err := sessions.Get(context.Background(), url)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	b, err := sessions.Get(context.Background(), url)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if a != b {
		t.Fatalf("expected the same session")
	}
}

func TestDialRequiresURL(t *testing.T) {
	if _, err := Dial(context.Background(), "", nil); !errors.Is(err, errors.CodeInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestResultValuePrefersStructured(t *testing.T) {
	res := &mcpgo.CallToolResult{
		StructuredContent: map[string]any{"n": 1},
		Content:           []mcpgo.Content{mcpgo.TextContent{Type: "text", Text: "ignored"}},
	}
	v, err := ResultValue(res)
	if err != nil {
		t.Fatalf("ResultValue: %v", err)
	}
	if m, ok := v.(map[string]any); !ok || m["n"] != 1 {
		t.Fatalf("value = %#v", v)
	}
}
