// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jllopis/amethyst/pkg/errors"
)

// DefaultOllamaURL is the local Ollama endpoint.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaProvider talks to the Ollama /api/chat endpoint without streaming.
type OllamaProvider struct {
	baseURL string
	client  *http.Client
}

func NewOllama(baseURL string) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []Tool          `json:"tools,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

// ollamaMessage differs from Message in two ways: tool call arguments are
// objects, and tool results name the function instead of a call id.
type ollamaMessage struct {
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type ollamaResponse struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	EvalCount       int           `json:"eval_count"`
	PromptEvalCount int           `json:"prompt_eval_count"`
}

func (p *OllamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	oReq := ollamaRequest{
		Model:    req.Model,
		Messages: ollamaMessages(req.Messages),
		Tools:    req.Tools,
	}
	if req.Temperature != 0 {
		oReq.Options = map[string]any{"temperature": req.Temperature}
	}

	body, err := json.Marshal(oReq)
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "marshal ollama request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "create ollama request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "ollama unreachable", err).
			WithContext("base_url", p.baseURL).
			WithRecoverable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.Newf(errors.CodeLLMError, "ollama returned %s: %s", resp.Status, strings.TrimSpace(string(msg))).
			WithContext("model", req.Model).
			WithStatusCode(resp.StatusCode).
			WithRecoverable(resp.StatusCode >= 500)
	}

	var oResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&oResp); err != nil {
		return nil, errors.New(errors.CodeLLMError, "decode ollama response", err)
	}

	calls := make([]ToolCall, 0, len(oResp.Message.ToolCalls))
	for i, c := range oResp.Message.ToolCalls {
		calls = append(calls, NewToolCall(fmt.Sprintf("call-%d", i), c.Function.Name, c.Function.Arguments))
	}
	return &ChatResponse{
		Content:   oResp.Message.Content,
		ToolCalls: calls,
		Usage: Usage{
			PromptTokens:     oResp.PromptEvalCount,
			CompletionTokens: oResp.EvalCount,
			TotalTokens:      oResp.PromptEvalCount + oResp.EvalCount,
		},
	}, nil
}

// ollamaMessages converts history. Tool results are matched back to the
// function name through the id of the assistant call that produced them.
func ollamaMessages(msgs []Message) []ollamaMessage {
	names := map[string]string{}
	out := make([]ollamaMessage, 0, len(msgs))
	for _, m := range msgs {
		om := ollamaMessage{Role: m.Role, Content: m.Content}
		for _, c := range m.ToolCalls {
			if c.ID != "" {
				names[c.ID] = c.Function.Name
			}
			var oc ollamaToolCall
			oc.Function.Name = c.Function.Name
			oc.Function.Arguments = argumentsMap(c.Function)
			om.ToolCalls = append(om.ToolCalls, oc)
		}
		if m.Role == RoleTool {
			om.ToolName = names[m.ToolCallID]
		}
		out = append(out, om)
	}
	return out
}
