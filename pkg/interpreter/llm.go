// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/errors"
	"github.com/jllopis/amethyst/pkg/llm"
)

// Option configures an LLMInterpreter.
type Option func(*LLMInterpreter)

// WithModel sets the model name sent to the provider.
func WithModel(model string) Option {
	return func(i *LLMInterpreter) {
		i.model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(i *LLMInterpreter) {
		i.temperature = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *LLMInterpreter) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// LLMInterpreter plans with a chat model through the create_task and
// create_step function tools. It keeps the conversation of every cycle so
// later cycles see what was already planned.
type LLMInterpreter struct {
	provider    llm.Provider
	model       string
	temperature float64
	logger      *slog.Logger

	history []llm.Message
}

// NewLLM creates an interpreter backed by provider.
func NewLLM(provider llm.Provider, opts ...Option) *LLMInterpreter {
	i := &LLMInterpreter{
		provider: provider,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i
}

// LLMFactory returns a Factory creating LLM interpreters.
func LLMFactory(provider llm.Provider, opts ...Option) Factory {
	return func() Interpreter {
		return NewLLM(provider, opts...)
	}
}

// Interpret implements Interpreter.
func (i *LLMInterpreter) Interpret(ctx context.Context, req Request) (*Plan, error) {
	if i.provider == nil {
		return nil, errors.New(errors.CodeLLMError, "interpreter has no llm provider", nil)
	}
	resources, err := json.MarshalIndent(req.Resources, "", "  ")
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "encode resources", err)
	}
	user, err := userMessage(req)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(i.history)+2)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: Instructions + "\n\nResources:\n" + string(resources),
	})
	messages = append(messages, i.history...)
	messages = append(messages, user)

	resp, err := i.provider.Chat(ctx, llm.ChatRequest{
		Model:       i.model,
		Messages:    messages,
		Tools:       Tools,
		Temperature: i.temperature,
	})
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "interpreter chat failed", err).
			WithContext("resource", req.Resource)
	}
	if resp == nil {
		return nil, errors.New(errors.CodeLLMError, "interpreter chat returned no response", nil)
	}

	i.history = append(i.history, user, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})

	plan := &Plan{}
	for idx, call := range resp.ToolCalls {
		id := call.ID
		if id == "" {
			id = fmt.Sprintf("call-%d", idx)
		}
		ack := `{"status":"success"}`
		if err := i.apply(plan, req, call); err != nil {
			i.logger.WarnContext(ctx, "interpreter tool call rejected",
				slog.String("resource", req.Resource),
				slog.String("function", call.Function.Name),
				slog.String("error", err.Error()),
			)
			ack = fmt.Sprintf(`{"status":"error","message":%q}`, err.Error())
		}
		i.history = append(i.history, llm.Message{Role: llm.RoleTool, ToolCallID: id, Content: ack})
	}

	if len(plan.Tasks) == 0 && len(plan.Steps) == 0 {
		plan.Result = parseResult(resp.Content)
	}
	return plan, nil
}

type createTaskArgs struct {
	ID           string         `json:"id"`
	ResourceName string         `json:"resource_name"`
	TaskType     string         `json:"task_type"`
	Parameters   map[string]any `json:"parameters"`
	Instructions string         `json:"instructions"`
	IsAsync      bool           `json:"is_async"`
}

type createStepArgs struct {
	StepType string   `json:"step_type"`
	TaskIDs  []string `json:"task_ids"`
}

func (i *LLMInterpreter) apply(plan *Plan, req Request, call llm.ToolCall) error {
	switch call.Function.Name {
	case toolCreateTask:
		var args createTaskArgs
		if err := call.Function.Decode(&args); err != nil {
			return fmt.Errorf("invalid create_task arguments: %w", err)
		}
		item := make(map[string]any, len(args.Parameters)+1)
		for k, v := range args.Parameters {
			item[k] = v
		}
		if args.Instructions != "" {
			item["prompt"] = args.Instructions
		}
		var input []map[string]any
		if len(item) > 0 {
			input = []map[string]any{item}
		}
		task := core.NewTask(req.ParentTaskID, args.ResourceName, core.TaskType(args.TaskType), input)
		if args.ID != "" {
			task.ID = args.ID
		}
		task.IsAsync = args.IsAsync
		plan.Tasks = append(plan.Tasks, task)
	case toolCreateStep:
		var args createStepArgs
		if err := call.Function.Decode(&args); err != nil {
			return fmt.Errorf("invalid create_step arguments: %w", err)
		}
		plan.Steps = append(plan.Steps, core.Step{Type: core.StepType(args.StepType), TaskIDs: args.TaskIDs})
	default:
		return fmt.Errorf("unknown function %q", call.Function.Name)
	}
	return nil
}

func userMessage(req Request) (llm.Message, error) {
	mem, err := json.MarshalIndent(req.Context, "", "  ")
	if err != nil {
		return llm.Message{}, errors.New(errors.CodeLLMError, "encode memory context", err)
	}
	var b strings.Builder
	b.WriteString("Memory:\n")
	b.Write(mem)
	if len(req.Input) > 0 {
		in, err := json.MarshalIndent(req.Input, "", "  ")
		if err != nil {
			return llm.Message{}, errors.New(errors.CodeLLMError, "encode task input", err)
		}
		b.WriteString("\n\nInput:\n")
		b.Write(in)
	}
	b.WriteString("\n\nCode:\n")
	b.WriteString(numberLines(req.Code))
	return llm.Message{Role: llm.RoleUser, Content: b.String()}, nil
}

func numberLines(code string) string {
	lines := strings.Split(code, "\n")
	var b strings.Builder
	for n, line := range lines {
		fmt.Fprintf(&b, "%3d: %s\n", n+1, line)
	}
	return b.String()
}

// parseResult reads the final {"task_id", "result"} answer. Anything that is
// not such an object is taken verbatim as the result. Blank content yields
// no result.
func parseResult(content string) *core.Result {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	var out struct {
		TaskID string `json:"task_id"`
		Result any    `json:"result"`
	}
	if err := json.Unmarshal([]byte(text), &out); err == nil && out.Result != nil {
		return &core.Result{TaskID: out.TaskID, Value: out.Result}
	}
	return &core.Result{Value: strings.TrimSpace(content)}
}
