// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jllopis/amethyst/pkg/errors"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiProvider implements Provider with the Google generative AI API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGemini creates a provider for the given API key.
func NewGemini(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New(errors.CodeUnauthorized, "gemini api key is required", nil)
	}
	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "create gemini client", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{client: c, model: model}, nil
}

// Close releases the underlying client.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

// Chat implements Provider.
func (p *GeminiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	name := req.Model
	if name == "" {
		name = p.model
	}
	model := p.client.GenerativeModel(name)
	if req.Temperature != 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if len(req.Tools) > 0 {
		tool := &genai.Tool{}
		for _, t := range req.Tools {
			tool.FunctionDeclarations = append(tool.FunctionDeclarations, &genai.FunctionDeclaration{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  geminiSchema(schemaMap(t.Function.Parameters)),
			})
		}
		model.Tools = []*genai.Tool{tool}
	}

	var system []string
	history := geminiHistory(req.Messages, &system)
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n"))}}
	}
	if len(history) == 0 {
		return nil, errors.New(errors.CodeLLMError, "gemini chat needs at least one message", nil)
	}

	cs := model.StartChat()
	cs.History = history[:len(history)-1]
	resp, err := cs.SendMessage(ctx, history[len(history)-1].Parts...)
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "gemini api error", err)
	}

	out := &ChatResponse{}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	var text []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for i, part := range cand.Content.Parts {
			switch v := part.(type) {
			case genai.Text:
				text = append(text, string(v))
			case genai.FunctionCall:
				out.ToolCalls = append(out.ToolCalls, geminiToolCall(v, i))
			case *genai.FunctionCall:
				out.ToolCalls = append(out.ToolCalls, geminiToolCall(*v, i))
			}
		}
		break
	}
	out.Content = strings.Join(text, "\n")
	return out, nil
}

func geminiToolCall(fc genai.FunctionCall, index int) ToolCall {
	args, err := json.Marshal(fc.Args)
	if err != nil {
		args = []byte("{}")
	}
	return ToolCall{
		ID:       fmt.Sprintf("%s-%d", fc.Name, index),
		Type:     ToolTypeFunction,
		Function: FunctionCall{Name: fc.Name, Arguments: args},
	}
}

// geminiHistory maps messages to chat contents. Tool results are sent back
// as function responses keyed by the called function name.
func geminiHistory(msgs []Message, system *[]string) []*genai.Content {
	names := map[string]string{}
	var out []*genai.Content
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			*system = append(*system, m.Content)
		case RoleAssistant:
			c := &genai.Content{Role: "model"}
			if m.Content != "" {
				c.Parts = append(c.Parts, genai.Text(m.Content))
			}
			for _, tc := range m.ToolCalls {
				names[tc.ID] = tc.Function.Name
				c.Parts = append(c.Parts, genai.FunctionCall{Name: tc.Function.Name, Args: argumentsMap(tc.Function)})
			}
			if len(c.Parts) > 0 {
				out = append(out, c)
			}
		case RoleTool:
			out = append(out, &genai.Content{Role: "user", Parts: []genai.Part{genai.FunctionResponse{
				Name:     names[m.ToolCallID],
				Response: map[string]any{"content": m.Content},
			}}})
		default:
			out = append(out, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	return out
}

func geminiSchema(s map[string]any) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{}
	if d, ok := s["description"].(string); ok {
		out.Description = d
	}
	switch s["type"] {
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
		if items, ok := s["items"].(map[string]any); ok {
			out.Items = geminiSchema(items)
		} else {
			out.Items = &genai.Schema{Type: genai.TypeString}
		}
	default:
		out.Type = genai.TypeObject
		if props, ok := s["properties"].(map[string]any); ok {
			out.Properties = make(map[string]*genai.Schema, len(props))
			for name, p := range props {
				if pm, ok := p.(map[string]any); ok {
					out.Properties[name] = geminiSchema(pm)
				}
			}
		}
		out.Required = stringList(s["required"])
	}
	return out
}
