// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/jllopis/amethyst/pkg/errors"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicProvider implements Provider with the Anthropic Messages API.
type AnthropicProvider struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewAnthropic creates a provider. An empty apiKey falls back to
// ANTHROPIC_API_KEY.
func NewAnthropic(apiKey, baseURL, model string) *AnthropicProvider {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	m := anthropic.Model(model)
	if model == "" {
		m = anthropic.ModelClaude3_5Sonnet20241022
	}
	return &AnthropicProvider{client: &client, model: m}
}

// Chat implements Provider.
func (p *AnthropicProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := p.model
	if req.Model != "" {
		model = anthropic.Model(req.Model)
	}
	params := anthropic.MessageNewParams{
		Model:     model,
		Messages:  anthropicMessages(req.Messages),
		MaxTokens: defaultAnthropicMaxTokens,
	}
	if req.Temperature != 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	for _, m := range req.Messages {
		if m.Role == RoleSystem && m.Content != "" {
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		}
	}
	for _, t := range req.Tools {
		schema := schemaMap(t.Function.Parameters)
		input := anthropic.ToolInputSchemaParam{
			Type:       constant.Object("object"),
			Properties: schema["properties"],
			Required:   stringList(schema["required"]),
		}
		params.Tools = append(params.Tools, anthropic.ToolUnionParamOfTool(input, t.Function.Name))
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "anthropic api error", err)
	}

	out := &ChatResponse{
		Usage: Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
	var text []string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if t := block.AsText().Text; t != "" {
				text = append(text, t)
			}
		case "tool_use":
			use := block.AsToolUse()
			args, err := json.Marshal(use.Input)
			if err != nil {
				args = []byte("{}")
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:       use.ID,
				Type:     ToolTypeFunction,
				Function: FunctionCall{Name: use.Name, Arguments: args},
			})
		}
	}
	out.Content = strings.Join(text, "\n")
	return out, nil
}

// anthropicMessages converts the history. Tool results travel as user
// messages right after the assistant turn that requested them.
func anthropicMessages(msgs []Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	var results []anthropic.ContentBlockParamUnion
	flush := func() {
		if len(results) > 0 {
			out = append(out, anthropic.NewUserMessage(results...))
			results = nil
		}
	}
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			continue
		case RoleTool:
			results = append(results, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
		case RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, argumentsMap(tc.Function), tc.Function.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			flush()
			if m.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		}
	}
	flush()
	return out
}
