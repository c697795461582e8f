// Package research wraps the external LLM call that investigates an entity's
// stance. It builds the prompt, parses and validates the reply, and maps
// every failure onto a small set of sentinel errors.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/ppiankov/stancedb/internal/llm"
	"github.com/ppiankov/stancedb/internal/model"
)

// Sentinel errors for research calls
var (
	ErrInvalidFormat = errors.New("research: invalid response format")
	ErrTimeout       = errors.New("research: oracle timed out")
	ErrFailed        = errors.New("research: oracle call failed")
	ErrNotConfigured = errors.New("research: oracle not configured")
)

// DefaultTimeout bounds a single oracle call
const DefaultTimeout = 30 * time.Second

// Result is a validated research answer
type Result struct {
	Name          string
	EntityType    string // as reported by the oracle, lower-cased
	Category      string // profession or industry
	Stance        model.Stance
	Sources       []string
	Summary       string
	Confidence    int
	ParentCompany string
}

// Limiter throttles oracle calls per key
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// Oracle researches entities through an LLM provider. It never retries and
// never memoizes.
type Oracle struct {
	provider    llm.Provider
	limiter     Limiter
	timeout     time.Duration
	maxTokens   int
	temperature float32
	logger      *slog.Logger
}

// Option configures an Oracle
type Option func(*Oracle)

// WithLimiter rate-limits calls keyed by provider name
func WithLimiter(l Limiter) Option {
	return func(o *Oracle) { o.limiter = l }
}

// WithTimeout sets the per-call timeout
func WithTimeout(d time.Duration) Option {
	return func(o *Oracle) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithSampling sets max tokens and temperature
func WithSampling(maxTokens int, temperature float32) Option {
	return func(o *Oracle) {
		o.maxTokens = maxTokens
		o.temperature = temperature
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *Oracle) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOracle creates an oracle over provider. A nil provider yields an oracle
// whose every call fails with ErrNotConfigured.
func NewOracle(provider llm.Provider, opts ...Option) *Oracle {
	o := &Oracle{
		provider:    provider,
		timeout:     DefaultTimeout,
		maxTokens:   2000,
		temperature: 0.3,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Configured reports whether a provider is attached
func (o *Oracle) Configured() bool {
	return o != nil && o.provider != nil
}

// Research asks the oracle about name and returns the validated result
func (o *Oracle) Research(ctx context.Context, name string) (*Result, error) {
	if !o.Configured() {
		return nil, ErrNotConfigured
	}

	name = strings.TrimSpace(name)
	provider := o.provider.Name()
	logger := o.logger.With("provider", provider, "name", name)

	// The timeout covers the limiter wait as well as the call
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if o.limiter != nil {
		if err := o.limiter.Wait(callCtx, provider); err != nil {
			err = o.classify(callCtx, err)
			logger.Warn("research rate limit wait failed", "error", err)
			return nil, err
		}
	}

	temperature := o.temperature
	start := time.Now()
	resp, err := o.provider.Complete(callCtx, llm.CompletionRequest{
		System:      SystemPrompt,
		Prompt:      BuildPrompt(name),
		MaxTokens:   o.maxTokens,
		Temperature: &temperature,
	})
	elapsed := time.Since(start)
	if err != nil {
		err = o.classify(callCtx, err)
		logger.Warn("research call failed", "duration", elapsed, "error", err)
		return nil, err
	}

	result, err := Parse(resp.Content)
	if err != nil {
		logger.Warn("research response rejected", "duration", elapsed, "error", err)
		return nil, err
	}

	logger.Info("research complete",
		"duration", elapsed,
		"stance", result.Stance,
		"confidence", result.Confidence,
		"sources", len(result.Sources),
		"tokens", resp.TokensUsed)

	return result, nil
}

// classify maps a provider or limiter error to ErrTimeout or ErrFailed
func (o *Oracle) classify(ctx context.Context, err error) error {
	if isTimeout(ctx, err) {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, o.timeout, err)
	}
	return fmt.Errorf("%w: %w", ErrFailed, err)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
