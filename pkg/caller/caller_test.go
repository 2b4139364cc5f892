// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package caller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/errors"
	"github.com/jllopis/amethyst/pkg/mcp"
)

func toolRequest(url string, params map[string]any) Request {
	return Request{
		TaskID:   "t1",
		TaskType: core.TaskToolCall,
		Resource: core.Resource{Kind: core.ResourceTool, Name: "calc", Provider: core.ProviderAmethyst, URL: url},
		Params:   params,
	}
}

func TestHTTPToolCaller(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, got any)
	}{
		{
			name: "result member",
			body: `{"result": 42}`,
			check: func(t *testing.T, got any) {
				if got != float64(42) {
					t.Fatalf("got %#v, want 42", got)
				}
			},
		},
		{
			name: "object without result",
			body: `{"answer": "yes"}`,
			check: func(t *testing.T, got any) {
				m, ok := got.(map[string]any)
				if !ok || m["answer"] != "yes" {
					t.Fatalf("got %#v", got)
				}
			},
		},
		{
			name: "plain text",
			body: `hello`,
			check: func(t *testing.T, got any) {
				if got != "hello" {
					t.Fatalf("got %#v", got)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var received map[string]any
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method = %s", r.Method)
				}
				_ = json.NewDecoder(r.Body).Decode(&received)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := NewHTTPToolCaller().Call(context.Background(), toolRequest(srv.URL, map[string]any{"a": 40, "b": 2}))
			if err != nil {
				t.Fatalf("Call: %v", err)
			}
			tt.check(t, got)
			if received["a"] != float64(40) {
				t.Fatalf("params not posted: %v", received)
			}
		})
	}
}

func TestHTTPToolCallerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPToolCaller().Call(context.Background(), toolRequest(srv.URL, nil))
	if !errors.Is(err, errors.CodeCallError) {
		t.Fatalf("expected call error, got %v", err)
	}
	if ae := errors.As(err); ae.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", ae.StatusCode)
	}
}

func TestHTTPToolCallerTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewHTTPToolCaller(WithTimeout(50*time.Millisecond)).Call(context.Background(), toolRequest(srv.URL, nil))
	if !errors.Is(err, errors.CodeTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestHTTPToolCallerMissingURL(t *testing.T) {
	_, err := NewHTTPToolCaller().Call(context.Background(), toolRequest("", nil))
	if !errors.Is(err, errors.CodeInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func newAgentServer(t *testing.T, cardPath string, reply func(req map[string]any) map[string]any) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc(cardPath, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "writer", "url": srv.URL + "/rpc"})
	})
	mux.HandleFunc("/rpc", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(reply(req))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func agentRequest(url, prompt string) Request {
	return Request{
		TaskID:   "t2",
		TaskType: core.TaskAgentCall,
		Resource: core.Resource{Kind: core.ResourceAgent, Name: "writer", Provider: core.ProviderAmethyst, URL: url},
		Params:   map[string]any{"prompt": prompt},
	}
}

func TestA2AAgentCaller(t *testing.T) {
	var seen map[string]any
	srv := newAgentServer(t, "/.well-known/agent-card.json", func(req map[string]any) map[string]any {
		seen = req
		return map[string]any{"jsonrpc": "2.0", "id": req["id"], "result": map[string]any{"kind": "message", "parts": []any{}}}
	})

	got, err := NewA2AAgentCaller().Call(context.Background(), agentRequest(srv.URL, "write a haiku"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	envelope, ok := got.(map[string]any)
	if !ok || envelope["result"] == nil {
		t.Fatalf("expected full envelope, got %#v", got)
	}
	if seen["method"] != "message/send" || seen["jsonrpc"] != "2.0" {
		t.Fatalf("unexpected request %v", seen)
	}
	msg := seen["params"].(map[string]any)["message"].(map[string]any)
	id, _ := msg["messageId"].(string)
	if len(id) != 32 || strings.Contains(id, "-") {
		t.Fatalf("messageId = %q, want hex uuid", id)
	}
	part := msg["parts"].([]any)[0].(map[string]any)
	if part["text"] != "write a haiku" {
		t.Fatalf("prompt = %v", part["text"])
	}
}

func TestA2AAgentCallerLegacyCard(t *testing.T) {
	srv := newAgentServer(t, "/.well-known/agent.json", func(req map[string]any) map[string]any {
		return map[string]any{"jsonrpc": "2.0", "id": req["id"], "result": "ok"}
	})
	if _, err := NewA2AAgentCaller().Call(context.Background(), agentRequest(srv.URL, "hi")); err != nil {
		t.Fatalf("Call: %v", err)
	}
}

func TestA2AAgentCallerRPCError(t *testing.T) {
	srv := newAgentServer(t, "/.well-known/agent-card.json", func(req map[string]any) map[string]any {
		return map[string]any{"jsonrpc": "2.0", "id": req["id"], "error": map[string]any{"code": -32603, "message": "internal"}}
	})
	_, err := NewA2AAgentCaller().Call(context.Background(), agentRequest(srv.URL, "hi"))
	if !errors.Is(err, errors.CodeCallError) {
		t.Fatalf("expected call error, got %v", err)
	}
}

func TestA2AAgentCallerNoCard(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err := NewA2AAgentCaller().Call(context.Background(), agentRequest(srv.URL, "hi"))
	if !errors.Is(err, errors.CodeCallError) {
		t.Fatalf("expected call error, got %v", err)
	}
}

func TestPrompt(t *testing.T) {
	if got := Prompt(map[string]any{"prompt": "x"}); got != "x" {
		t.Fatalf("got %q", got)
	}
	if got := Prompt(map[string]any{"topic": "go"}); got != `{"topic":"go"}` {
		t.Fatalf("got %q", got)
	}
	if got := Prompt(nil); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestMCPCaller(t *testing.T) {
	server := mcpserver.NewMCPServer("apps", "1.0.0")
	server.AddTool(mcpgo.NewTool("slack_post", mcpgo.WithString("text")), func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		text, _ := req.GetArguments()["text"].(string)
		return &mcpgo.CallToolResult{
			Content: []mcpgo.Content{mcpgo.TextContent{Type: "text", Text: "posted: " + text}},
		}, nil
	})
	httpServer := mcpserver.NewTestStreamableHTTPServer(server)
	defer httpServer.Close()

	sessions := mcp.NewSessions(nil)
	defer sessions.Close()
	c := NewMCPCaller(sessions, httpServer.URL)

	got, err := c.Call(context.Background(), Request{
		TaskID:   "t3",
		TaskType: core.TaskToolCall,
		Resource: core.Resource{Kind: core.ResourceTool, Name: "post", Provider: core.ProviderExternal, Key: "slack_post"},
		Params:   map[string]any{"text": "hello"},
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != "posted: hello" {
		t.Fatalf("got %#v", got)
	}
}

func TestRouter(t *testing.T) {
	var hit string
	mk := func(name string) Caller {
		return Func(func(ctx context.Context, req Request) (any, error) {
			hit = name
			return name, nil
		})
	}
	r := &Router{Tools: mk("tools"), Agents: mk("agents"), External: mk("external")}

	tests := []struct {
		res  core.Resource
		want string
	}{
		{core.Resource{Kind: core.ResourceTool, Name: "a", Provider: core.ProviderAmethyst}, "tools"},
		{core.Resource{Kind: core.ResourceAgent, Name: "b", Provider: core.ProviderAmethyst}, "agents"},
		{core.Resource{Kind: core.ResourceTool, Name: "c", Provider: core.ProviderExternal}, "external"},
	}
	for _, tt := range tests {
		if _, err := r.Call(context.Background(), Request{Resource: tt.res}); err != nil {
			t.Fatalf("%s: %v", tt.res.Name, err)
		}
		if hit != tt.want {
			t.Fatalf("%s routed to %s, want %s", tt.res.Name, hit, tt.want)
		}
	}

	_, err := r.Call(context.Background(), Request{Resource: core.Resource{Kind: core.ResourceFunction, Name: "f"}})
	if !errors.Is(err, errors.CodeInvalidInput) {
		t.Fatalf("expected invalid input for function, got %v", err)
	}
	_, err = (&Router{}).Call(context.Background(), Request{Resource: core.Resource{Kind: core.ResourceTool, Name: "x"}})
	if !errors.Is(err, errors.CodeCallError) {
		t.Fatalf("expected call error for missing transport, got %v", err)
	}
}
