// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"strings"

	"github.com/jllopis/amethyst/pkg/errors"
)

// Config selects and configures a provider backend.
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

// New builds the provider named by cfg.Provider: ollama, openai,
// anthropic, gemini or mock.
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "ollama":
		return NewOllama(cfg.BaseURL), nil
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "anthropic":
		return NewAnthropic(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "gemini":
		p, err := NewGemini(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "mock":
		return NewScriptedMockProvider(), nil
	default:
		return nil, errors.Newf(errors.CodeInvalidInput, "unknown llm provider %q", cfg.Provider)
	}
}
