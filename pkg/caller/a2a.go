// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package caller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jllopis/amethyst/pkg/errors"
)

// Well-known agent card locations, newest first.
var agentCardPaths = []string{
	"/.well-known/agent-card.json",
	"/.well-known/agent.json",
}

// AgentCard is the subset of an A2A agent card the caller needs.
type AgentCard struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      string         `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

// A2AAgentCaller sends a single message/send request to an A2A agent.
type A2AAgentCaller struct {
	cfg httpConfig
}

// NewA2AAgentCaller creates an agent caller.
func NewA2AAgentCaller(opts ...HTTPOption) *A2AAgentCaller {
	return &A2AAgentCaller{cfg: newHTTPConfig(opts)}
}

// Call resolves the agent card and sends the prompt. The decoded JSON-RPC
// envelope is the result.
func (c *A2AAgentCaller) Call(ctx context.Context, req Request) (any, error) {
	res := req.Resource
	base := strings.TrimRight(res.URL, "/")
	if base == "" {
		return nil, errors.Newf(errors.CodeInvalidInput, "agent %q has no url", res.Name)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.timeout)
	defer cancel()

	card, err := c.ResolveCard(ctx, base)
	if err != nil {
		return nil, err
	}
	endpoint := card.URL
	if endpoint == "" {
		endpoint = base
	}

	envelope := rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  "message/send",
		Params: map[string]any{
			"message": map[string]any{
				"role":      "user",
				"parts":     []map[string]any{{"kind": "text", "text": Prompt(req.Params)}},
				"messageId": strings.ReplaceAll(uuid.NewString(), "-", ""),
			},
		},
	}
	var out map[string]any
	if err := c.postJSON(ctx, res.Name, endpoint, envelope, &out); err != nil {
		return nil, err
	}
	if rpcErr, ok := out["error"]; ok && rpcErr != nil {
		return nil, errors.Newf(errors.CodeCallError, "agent %q answered with error: %v", res.Name, rpcErrorMessage(rpcErr)).
			WithContext("resource", res.Name).
			WithContext("rpc_error", rpcErr)
	}
	return out, nil
}

// ResolveCard fetches the agent card under base.
func (c *A2AAgentCaller) ResolveCard(ctx context.Context, base string) (*AgentCard, error) {
	var lastErr error
	for _, path := range agentCardPaths {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
		if err != nil {
			return nil, errors.New(errors.CodeInvalidInput, "build agent card request", err)
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.cfg.client.Do(req)
		if err != nil {
			return nil, transportError(base, err)
		}
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			lastErr = errors.Newf(errors.CodeCallError, "agent card not found at %s", base+path).WithStatusCode(resp.StatusCode)
			continue
		}
		if readErr != nil {
			return nil, transportError(base, readErr)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, errors.Newf(errors.CodeCallError, "agent card at %s returned %s", base+path, resp.Status).
				WithStatusCode(resp.StatusCode)
		}
		var card AgentCard
		if err := json.Unmarshal(data, &card); err != nil {
			return nil, errors.New(errors.CodeCallError, "malformed agent card", err).WithContext("url", base+path)
		}
		return &card, nil
	}
	return nil, lastErr
}

func (c *A2AAgentCaller) postJSON(ctx context.Context, name, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.New(errors.CodeInvalidInput, "encode agent request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.New(errors.CodeInvalidInput, "build agent request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.cfg.client.Do(req)
	if err != nil {
		return transportError(name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError(name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf(errors.CodeCallError, "agent %q returned %s", name, resp.Status).
			WithContext("resource", name).
			WithStatusCode(resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.New(errors.CodeCallError, "malformed agent response", err).WithContext("resource", name)
	}
	return nil
}

// Prompt extracts the text sent to an agent: the "prompt" parameter when it
// is a string, otherwise the JSON encoding of all parameters.
func Prompt(params map[string]any) string {
	if p, ok := params["prompt"].(string); ok {
		return p
	}
	if len(params) == 0 {
		return ""
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprint(params)
	}
	return string(raw)
}

func rpcErrorMessage(v any) any {
	if m, ok := v.(map[string]any); ok {
		if msg, ok := m["message"]; ok {
			return msg
		}
	}
	return v
}
