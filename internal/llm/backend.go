package llm

import (
	"context"
	"fmt"
	"net/http"
)

// Backend is a hosted model able to return a Visualization for a prompt pair
type Backend interface {
	// Name returns the backend identifier
	Name() string

	// Generate sends the system and user prompts and decodes the structured answer
	Generate(ctx context.Context, system, user string) (*Visualization, Usage, error)
}

// Config selects and configures a backend
type Config struct {
	Backend    string // "anthropic", "openai" or "gemini"
	Model      string
	APIKey     string
	BaseURL    string // optional endpoint override
	MaxTokens  int
	HTTPClient *http.Client
}

// DefaultMaxTokens is the completion budget for one scene
const DefaultMaxTokens = 8000

// DefaultModel returns the model used when none is configured
func DefaultModel(backend string) string {
	switch backend {
	case "anthropic":
		return DefaultAnthropicModel
	case "openai":
		return DefaultOpenAIModel
	case "gemini":
		return DefaultGeminiModel
	default:
		return ""
	}
}

// NewBackend creates the backend named in the config
func NewBackend(ctx context.Context, config *Config) (Backend, error) {
	if config == nil {
		return nil, fmt.Errorf("backend config is required")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", config.Backend)
	}
	if config.Model == "" {
		config.Model = DefaultModel(config.Backend)
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}

	switch config.Backend {
	case "anthropic":
		return NewAnthropic(config), nil
	case "openai":
		return NewOpenAI(config), nil
	case "gemini":
		return NewGemini(ctx, config)
	default:
		return nil, fmt.Errorf("unknown llm backend: %s", config.Backend)
	}
}
