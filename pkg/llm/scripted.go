// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"sync"

	"github.com/jllopis/amethyst/pkg/errors"
)

// ScriptedMockProvider returns a pre-defined sequence of responses.
// Useful for testing multi-turn interactions.
type ScriptedMockProvider struct {
	mu        sync.Mutex
	Responses []ChatResponse
	Err       error
	// Requests records every request received, in order.
	Requests []ChatRequest
}

// NewScriptedMockProvider creates a provider answering with plain text
// responses.
func NewScriptedMockProvider(responses ...string) *ScriptedMockProvider {
	s := &ScriptedMockProvider{}
	for _, r := range responses {
		s.Responses = append(s.Responses, ChatResponse{Content: r})
	}
	return s
}

// Chat pops the next scripted response or returns the configured error.
func (s *ScriptedMockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Requests = append(s.Requests, req)
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.Responses) == 0 {
		return nil, errors.New(errors.CodeLLMError, "scripted mock: no more responses available", nil)
	}

	resp := s.Responses[0]
	s.Responses = s.Responses[1:]
	resp.Usage = Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20}
	return &resp, nil
}

// AddResponse appends a text response to the queue.
func (s *ScriptedMockProvider) AddResponse(response string) {
	s.AddToolCalls(response)
}

// AddToolCalls appends a response carrying tool calls.
func (s *ScriptedMockProvider) AddToolCalls(content string, calls ...ToolCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses = append(s.Responses, ChatResponse{Content: content, ToolCalls: calls})
}

// CallCount returns how many times Chat has been called.
func (s *ScriptedMockProvider) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}
