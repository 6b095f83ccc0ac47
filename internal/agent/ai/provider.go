// Package ai abstracts the text-generation collaborator used for
// conversation summarization. Providers are one-shot: a system
// instruction plus a user prompt in, free-form text out. Callers must
// bound the wait with a context deadline and must never assume the
// call succeeds.
package ai

import (
	"context"
	"fmt"
)

// Request is a single text-generation request.
type Request struct {
	System      string  // system instruction
	Prompt      string  // user prompt
	Temperature float64 // 0 means provider default
	MaxTokens   int     // 0 means provider default
}

// Provider is a text-generation backend.
type Provider interface {
	// ID returns the provider identifier (e.g. "openai", "anthropic")
	ID() string

	// Generate sends a request and returns the generated text.
	Generate(ctx context.Context, req *Request) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider string `yaml:"provider"` // "openai" or "anthropic"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"` // OpenAI-compatible endpoints only
}

// NewProvider builds a provider from config.
func NewProvider(c Config) (Provider, error) {
	switch c.Provider {
	case "openai", "":
		return NewOpenAIProvider(c.APIKey, c.BaseURL, c.Model), nil
	case "anthropic":
		return NewAnthropicProvider(c.APIKey, c.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", c.Provider)
	}
}
