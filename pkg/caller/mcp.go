// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package caller

import (
	"context"
	"strings"

	"github.com/jllopis/amethyst/pkg/errors"
	"github.com/jllopis/amethyst/pkg/mcp"
)

// MCPCaller invokes external app tools over MCP.
type MCPCaller struct {
	sessions   *mcp.Sessions
	defaultURL string
}

// NewMCPCaller creates a caller. defaultURL is used for resources that do
// not carry their own url.
func NewMCPCaller(sessions *mcp.Sessions, defaultURL string) *MCPCaller {
	return &MCPCaller{sessions: sessions, defaultURL: defaultURL}
}

// Call runs the tool named by the resource key, or its name.
func (c *MCPCaller) Call(ctx context.Context, req Request) (any, error) {
	res := req.Resource
	url := strings.TrimSpace(res.URL)
	if url == "" {
		url = c.defaultURL
	}
	if url == "" {
		return nil, errors.Newf(errors.CodeInvalidInput, "external resource %q has no mcp url", res.Name)
	}
	tool := res.Key
	if tool == "" {
		tool = res.Name
	}

	session, err := c.sessions.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	result, err := session.CallTool(ctx, tool, req.Params)
	if err != nil {
		c.sessions.Drop(url)
		return nil, err
	}
	value, err := mcp.ResultValue(result)
	if err != nil {
		if ae := errors.As(err); ae != nil {
			ae.WithContext("resource", res.Name)
		}
		return nil, err
	}
	return value, nil
}
