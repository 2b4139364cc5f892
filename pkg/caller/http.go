// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package caller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jllopis/amethyst/pkg/errors"
)

// DefaultTimeout bounds a single outbound call.
const DefaultTimeout = 60 * time.Second

const maxResponseBytes = 8 << 20

// HTTPOption configures the HTTP based callers.
type HTTPOption func(*httpConfig)

type httpConfig struct {
	client  *http.Client
	timeout time.Duration
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *httpConfig) {
		if client != nil {
			c.client = client
		}
	}
}

// WithTimeout bounds every call.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(c *httpConfig) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func newHTTPConfig(opts []HTTPOption) httpConfig {
	cfg := httpConfig{client: http.DefaultClient, timeout: DefaultTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// HTTPToolCaller posts the task parameters to the tool URL.
type HTTPToolCaller struct {
	cfg httpConfig
}

// NewHTTPToolCaller creates a tool caller.
func NewHTTPToolCaller(opts ...HTTPOption) *HTTPToolCaller {
	return &HTTPToolCaller{cfg: newHTTPConfig(opts)}
}

// Call posts req.Params as JSON. A JSON object answer yields its "result"
// member when present, any other JSON answer is returned decoded and a
// non-JSON answer is returned as text.
func (c *HTTPToolCaller) Call(ctx context.Context, req Request) (any, error) {
	res := req.Resource
	if strings.TrimSpace(res.URL) == "" {
		return nil, errors.Newf(errors.CodeInvalidInput, "tool %q has no url", res.Name)
	}
	params := req.Params
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "encode tool parameters", err).WithContext("resource", res.Name)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, res.URL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "build tool request", err).WithContext("resource", res.Name)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.cfg.client.Do(httpReq)
	if err != nil {
		return nil, transportError(res.Name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(res.Name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Newf(errors.CodeCallError, "tool %q returned %s", res.Name, resp.Status).
			WithContext("resource", res.Name).
			WithContext("body", truncate(string(data), 512)).
			WithStatusCode(resp.StatusCode)
	}
	return decodeToolResult(data), nil
}

func decodeToolResult(data []byte) any {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return string(data)
	}
	if obj, ok := value.(map[string]any); ok {
		if result, ok := obj["result"]; ok {
			return result
		}
	}
	return value
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
