// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"encoding/json"
)

// schemaMap returns a JSON schema as a generic map.
func schemaMap(schema any) map[string]any {
	switch s := schema.(type) {
	case nil:
		return map[string]any{"type": "object"}
	case map[string]any:
		return s
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return map[string]any{"type": "object"}
	}
	return out
}

// argumentsString renders call arguments as a JSON object string.
func argumentsString(f FunctionCall) string {
	var v map[string]any
	if err := f.Decode(&v); err != nil || v == nil {
		return "{}"
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// argumentsMap decodes call arguments into a map.
func argumentsMap(f FunctionCall) map[string]any {
	var v map[string]any
	if err := f.Decode(&v); err != nil || v == nil {
		return map[string]any{}
	}
	return v
}

// quoteArguments stores a string-encoded arguments object.
func quoteArguments(s string) json.RawMessage {
	raw, err := json.Marshal(s)
	if err != nil {
		return json.RawMessage(`"{}"`)
	}
	return raw
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
