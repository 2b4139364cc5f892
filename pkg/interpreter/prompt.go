// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package interpreter

import "github.com/jllopis/amethyst/pkg/llm"

// Instructions is the system prompt of the LLM interpreter.
const Instructions = `You are a language interpreter. Interpret and execute Amethyst code.

Amethyst syntax:
- Multiline blocks: "<entity> <name> ... end <entity>" (agent, function). Block headers are definitions, not executable code.
- "use <resource> <role>: <value>, ... to <action>" calls a tool, agent or function.
- "in parallel ..." runs a statement asynchronously; "wait for a, b" awaits labeled parallel tasks.
- Lines starting with "#" are comments.

Rules:
- To run a statement you must call resources. Match resource names in the code with the provided resources.
- Use create_task to delegate every call to the system. Populate tool parameters from the resource parameters schema.
- Use create_task with is_async=true for parallel statements, then create_step (await) with their ids where the code waits.
- Task ids use the format task-<line-number>-<name-of-the-task>. Never reuse an id present in memory.
- Read task results from memory before planning the next statement. Failed tasks carry results starting with "error:".
- When the code is fully executed reply with only a JSON object: {"task_id": "<id>", "result": "<final output as text>"}.`

const (
	toolCreateTask = "create_task"
	toolCreateStep = "create_step"
)

// Tools are the function tools offered to the model.
var Tools = []llm.Tool{
	{
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionDef{
			Name:        toolCreateTask,
			Description: "Create a task that calls a tool, an agent or a function.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "Task id in the format task-<line-number>-<name-of-the-task>",
					},
					"resource_name": map[string]any{
						"type":        "string",
						"description": "Resource name to call",
					},
					"task_type": map[string]any{
						"type": "string",
						"enum": []string{"tool_call", "agent_call", "function_call"},
					},
					"parameters": map[string]any{
						"type":        "object",
						"description": "Tool call parameters",
					},
					"instructions": map[string]any{
						"type":        "string",
						"description": "Agent call instructions in natural language",
					},
					"is_async": map[string]any{"type": "boolean"},
				},
				"required": []string{"id", "resource_name", "task_type"},
			},
		},
	},
	{
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionDef{
			Name:        toolCreateStep,
			Description: "Create a control flow step (await) over previously created async tasks.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"step_type": map[string]any{"type": "string", "enum": []string{"await"}},
					"task_ids": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
				"required": []string{"step_type", "task_ids"},
			},
		},
	},
}
