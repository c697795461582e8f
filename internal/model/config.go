package model

import "time"

// Config is the complete stancedb configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Policy    PolicyConfig    `yaml:"policy" mapstructure:"policy"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// StoreConfig selects and configures the persistent store
type StoreConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"` // sqlite, mongo
	DSN      string `yaml:"dsn" mapstructure:"dsn"`       // sqlite file path or ":memory:"
	MongoURI string `yaml:"mongo_uri" mapstructure:"mongo_uri"`
	Database string `yaml:"database" mapstructure:"database"`
}

// LLMConfig configures the research oracle provider
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // groq, openai, anthropic, ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
	HTTPProxy   string  `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy  string  `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy     string  `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// PolicyConfig holds the acceptance rules applied to research results
type PolicyConfig struct {
	AcceptanceFloor int `yaml:"acceptance_floor" mapstructure:"acceptance_floor"` // minimum confidence to persist
	FeaturedFloor   int `yaml:"featured_floor" mapstructure:"featured_floor"`     // minimum confidence for featured
	MinSources      int `yaml:"min_sources" mapstructure:"min_sources"`
	SearchLimit     int `yaml:"search_limit" mapstructure:"search_limit"` // per-variant cap
}

// CacheConfig configures the hot-record memory cache
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL             time.Duration `yaml:"ttl" mapstructure:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

// SourcesConfig configures verification of oracle-cited URLs
type SourcesConfig struct {
	Verify        bool          `yaml:"verify" mapstructure:"verify"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Workers       int           `yaml:"workers" mapstructure:"workers"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`

	// Proxies for probing cited URLs, independent of the llm section.
	// Empty falls back to the HTTP_PROXY family of environment variables.
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// RateLimitConfig bounds how often the oracle may be called
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// LoggingConfig configures the slog handler
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // text, json
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 45 * time.Second,
		},
		Store: StoreConfig{
			Driver:   "sqlite",
			DSN:      "stancedb.sqlite",
			Database: "stancedb",
		},
		LLM: LLMConfig{
			Provider:    "groq",
			Model:       "llama-3.3-70b-versatile",
			Timeout:     30,
			MaxTokens:   2000,
			Temperature: 0.3,
		},
		Policy: PolicyConfig{
			AcceptanceFloor: 30,
			FeaturedFloor:   90,
			MinSources:      MinSources,
			SearchLimit:     25,
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             5 * time.Minute,
			CleanupInterval: 10 * time.Minute,
		},
		Sources: SourcesConfig{
			Verify:        false,
			Timeout:       10 * time.Second,
			Workers:       5,
			UserAgent:     "stancedb/0.1 (+https://github.com/ppiankov/stancedb)",
			RespectRobots: true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 0.5,
			Burst:             3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
