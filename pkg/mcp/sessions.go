// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"sync"
)

// Sessions keeps one initialized session per server URL and shares it
// between concurrent callers.
type Sessions struct {
	headers map[string]string
	opts    []ClientOption

	mu      sync.Mutex
	clients map[string]*Client
}

// NewSessions creates a session cache. headers are sent on every request.
func NewSessions(headers map[string]string, opts ...ClientOption) *Sessions {
	return &Sessions{
		headers: headers,
		opts:    opts,
		clients: make(map[string]*Client),
	}
}

// Get returns the session for url, dialing it on first use.
func (s *Sessions) Get(ctx context.Context, url string) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[url]; ok {
		return c, nil
	}
	c, err := Dial(ctx, url, s.headers, s.opts...)
	if err != nil {
		return nil, err
	}
	s.clients[url] = c
	return c, nil
}

// Drop closes and forgets the session for url so the next Get redials.
func (s *Sessions) Drop(url string) {
	s.mu.Lock()
	c, ok := s.clients[url]
	delete(s.clients, url)
	s.mu.Unlock()
	if ok {
		_ = c.Close()
	}
}

// Close closes every open session.
func (s *Sessions) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for url, c := range s.clients {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
		delete(s.clients, url)
	}
	return first
}
