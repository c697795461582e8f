package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/stancedb/internal/model"
)

// NewProvider creates a new LLM provider based on configuration.
// An empty provider name disables the oracle and returns (nil, nil).
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "groq":
		return NewGroqProvider(config)

	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "", "none":
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: %s (supported: groq, openai, anthropic, ollama)", ErrUnknown, config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config. When no API key is
// configured it is taken from the provider's conventional environment variable.
func ConfigFromModel(modelConfig model.LLMConfig) Config {
	cfg := Config{
		Provider:    modelConfig.Provider,
		Model:       modelConfig.Model,
		APIKey:      modelConfig.APIKey,
		BaseURL:     modelConfig.BaseURL,
		Timeout:     modelConfig.Timeout,
		MaxTokens:   modelConfig.MaxTokens,
		Temperature: modelConfig.Temperature,
		HTTPProxy:   modelConfig.HTTPProxy,
		HTTPSProxy:  modelConfig.HTTPSProxy,
		NoProxy:     modelConfig.NoProxy,
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(APIKeyEnv(cfg.Provider))
	}
	return cfg
}

// APIKeyEnv names the environment variable holding the key for provider
func APIKeyEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "groq":
		return "GROQ_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic", "claude":
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}
