package llm

import (
	"context"
	"fmt"
	"strings"
)

type Provider string

const (
	OpenAI    Provider = "openai"
	Gemini    Provider = "gemini"
	Anthropic Provider = "anthropic"
)

const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 1024
)

// Client sends a single prompt, with system instructions, to a hosted model.
type Client interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Provider() Provider
	Model() string
}

// Options configure a provider client. Zero values pick the provider defaults.
type Options struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int64
	// BaseURL overrides the provider endpoint, mainly for tests.
	BaseURL string
}

func (o Options) withDefaults(model string) Options {
	if o.Model == "" {
		o.Model = model
	}
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}

// ParseProvider accepts a provider name case-insensitively.
func ParseProvider(name string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(name))); p {
	case OpenAI, Gemini, Anthropic:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported provider: %s (supported: %s, %s, %s)", name, OpenAI, Gemini, Anthropic)
	}
}

// New returns a client for the named provider.
func New(ctx context.Context, provider Provider, opts Options) (Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%s API key not set", provider)
	}
	switch provider {
	case OpenAI:
		return newOpenAIClient(opts), nil
	case Gemini:
		return newGeminiClient(ctx, opts)
	case Anthropic:
		return newAnthropicClient(opts), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s (supported: %s, %s, %s)", provider, OpenAI, Gemini, Anthropic)
	}
}
