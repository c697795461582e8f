package llm

import (
	"context"
	"errors"
)

// Sentinel errors shared by all providers
var (
	ErrMissingAPIKey = errors.New("llm: API key is required")
	ErrEmptyResponse = errors.New("llm: provider returned no content")
	ErrUnknown       = errors.New("llm: unknown provider")
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends a single-turn prompt and returns the raw text reply
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is one system + user exchange
type CompletionRequest struct {
	// System is the system instruction
	System string

	// Prompt is the user message
	Prompt string

	// Model overrides the configured model when set
	Model string

	// MaxTokens limits the response length (0 = provider config)
	MaxTokens int

	// Temperature overrides the configured temperature when non-nil
	Temperature *float32
}

// CompletionResponse contains the provider's reply
type CompletionResponse struct {
	// Content is the reply text, trimmed
	Content string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "groq", "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for Groq/OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, OpenAI-compatible gateways)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Temperature for sampling
	Temperature float32

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "groq",
		Model:       DefaultGroqModel,
		Timeout:     30,
		MaxTokens:   2000,
		Temperature: 0.3,
	}
}

func (c Config) model(req CompletionRequest, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}

func (c Config) maxTokens(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 2000
}

func (c Config) temperature(req CompletionRequest) float32 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return c.Temperature
}
