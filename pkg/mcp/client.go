// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp wraps mcp-go streamable HTTP sessions used to reach external
// apps.
package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/amethyst/pkg/errors"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultCacheTTL = 30 * time.Second

	clientName    = "amethyst"
	clientVersion = "0.1.0"
)

// ClientOption customizes the client wrapper behavior.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithToolCacheTTL sets the tool discovery cache TTL. Use 0 to disable caching.
func WithToolCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		if ttl >= 0 {
			c.cacheTTL = ttl
		}
	}
}

// Client is a single MCP session.
type Client struct {
	mcpClient client.MCPClient
	timeout   time.Duration
	cacheTTL  time.Duration

	mu          sync.Mutex
	toolsCache  []mcp.Tool
	cacheExpiry time.Time
}

// NewClient wraps an already initialized MCP client.
func NewClient(c client.MCPClient, opts ...ClientOption) *Client {
	cl := &Client{
		mcpClient: c,
		timeout:   defaultTimeout,
		cacheTTL:  defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// Dial opens and initializes a streamable HTTP session against baseURL.
func Dial(ctx context.Context, baseURL string, headers map[string]string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New(errors.CodeInvalidInput, "mcp server url is required", nil)
	}
	var topts []transport.StreamableHTTPCOption
	if len(headers) > 0 {
		topts = append(topts, transport.WithHTTPHeaders(headers))
	}
	httpClient, err := client.NewStreamableHttpClient(baseURL, topts...)
	if err != nil {
		return nil, errors.New(errors.CodeCallError, "create mcp client", err).WithContext("url", baseURL)
	}

	cl := NewClient(httpClient, opts...)
	if err := httpClient.Start(ctx); err != nil {
		return nil, errors.New(errors.CodeCallError, "start mcp session", err).WithContext("url", baseURL)
	}

	initCtx, cancel := cl.withTimeout(ctx)
	defer cancel()

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}
	if _, err := httpClient.Initialize(initCtx, initRequest); err != nil {
		_ = httpClient.Close()
		return nil, errors.New(errors.CodeCallError, "initialize mcp session", err).WithContext("url", baseURL)
	}
	return cl, nil
}

// ListTools retrieves the list of tools available on the server.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if cached := c.cachedTools(); cached != nil {
		return cached, nil
	}
	reqCtx, cancel := c.withTimeout(ctx)
	defer cancel()
	resp, err := c.mcpClient.ListTools(reqCtx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, wrapTransportError("list mcp tools", err)
	}
	c.storeTools(resp.Tools)
	return resp.Tools, nil
}

// Tool looks a tool up by name through the cached tool list.
func (c *Client) Tool(ctx context.Context, name string) (mcp.Tool, bool, error) {
	tools, err := c.ListTools(ctx)
	if err != nil {
		return mcp.Tool{}, false, err
	}
	for _, t := range tools {
		if t.Name == name {
			return t, true, nil
		}
	}
	return mcp.Tool{}, false, nil
}

// InputSchema returns the JSON schema of a tool's arguments as a plain map.
func InputSchema(t mcp.Tool) (map[string]any, error) {
	raw := t.RawInputSchema
	if len(raw) == 0 {
		var err error
		raw, err = json.Marshal(t.InputSchema)
		if err != nil {
			return nil, err
		}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CallTool executes a tool on the server once.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	reqCtx, cancel := c.withTimeout(ctx)
	defer cancel()
	res, err := c.mcpClient.CallTool(reqCtx, req)
	if err != nil {
		return nil, wrapTransportError("call mcp tool "+name, err).WithContext("tool", name)
	}
	return res, nil
}

// Close closes the session.
func (c *Client) Close() error {
	return c.mcpClient.Close()
}

func (c *Client) cachedTools() []mcp.Tool {
	if c.cacheTTL == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.toolsCache) == 0 || time.Now().After(c.cacheExpiry) {
		return nil
	}
	out := make([]mcp.Tool, len(c.toolsCache))
	copy(out, c.toolsCache)
	return out
}

func (c *Client) storeTools(tools []mcp.Tool) {
	if c.cacheTTL == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolsCache = make([]mcp.Tool, len(tools))
	copy(c.toolsCache, tools)
	c.cacheExpiry = time.Now().Add(c.cacheTTL)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func wrapTransportError(msg string, err error) *errors.Error {
	code := errors.CodeCallError
	if stderrors.Is(err, context.DeadlineExceeded) {
		code = errors.CodeTimeout
	}
	return errors.New(code, msg, err)
}
