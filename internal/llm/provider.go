package llm

import (
	"context"

	"github.com/veridex/veridex/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete runs one chat completion and returns the raw text
	Complete(ctx context.Context, req Request) (*Response, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Request is one completion call
type Request struct {
	// System sets the system prompt (may be empty)
	System string

	// Prompt is the user message
	Prompt string

	// Model overrides the configured default model when set
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// Temperature controls sampling; stages keep this low for structured output
	Temperature float64
}

// Response is the provider's raw output
type Response struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model is the default (strong) model
	Model string

	// QuickModel is a cheaper model for quick-scan calls (falls back to Model)
	QuickModel string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout per API request, in seconds
	Timeout int

	// MaxTokens default for response generation
	MaxTokens int

	// MaxRetries is the corrective-retry count for schema failures
	MaxRetries int

	// Temperature default
	Temperature float64

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "",
		Timeout:     60,
		MaxTokens:   2000,
		MaxRetries:  1,
		Temperature: 0.2,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:    mc.Provider,
		Model:       mc.Model,
		QuickModel:  mc.QuickModel,
		APIKey:      mc.APIKey,
		BaseURL:     mc.BaseURL,
		Timeout:     mc.Timeout,
		MaxTokens:   mc.MaxTokens,
		MaxRetries:  mc.MaxRetries,
		Temperature: mc.Temperature,
		HTTPProxy:   mc.HTTPProxy,
		HTTPSProxy:  mc.HTTPSProxy,
		NoProxy:     mc.NoProxy,
	}
}
