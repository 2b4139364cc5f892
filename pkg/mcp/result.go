// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/amethyst/pkg/errors"
)

// ResultValue converts a tool result to a plain value. Structured content is
// preferred; otherwise text parts are joined. Error results become
// CodeCallError.
func ResultValue(result *mcp.CallToolResult) (any, error) {
	if result == nil {
		return nil, errors.New(errors.CodeCallError, "mcp tool result is nil", nil)
	}
	if result.IsError {
		return nil, errors.Newf(errors.CodeCallError, "mcp tool returned error: %s", TextContent(result.Content))
	}
	if result.StructuredContent != nil {
		return result.StructuredContent, nil
	}
	return TextContent(result.Content), nil
}

// TextContent joins the text parts of a tool result.
func TextContent(items []mcp.Content) string {
	if len(items) == 0 {
		return ""
	}
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}
