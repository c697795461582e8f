package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ppiankov/stancedb/internal/cache"
	"github.com/ppiankov/stancedb/internal/llm"
	"github.com/ppiankov/stancedb/internal/lookup"
	"github.com/ppiankov/stancedb/internal/metrics"
	"github.com/ppiankov/stancedb/internal/model"
	"github.com/ppiankov/stancedb/internal/populate"
	"github.com/ppiankov/stancedb/internal/research"
	"github.com/ppiankov/stancedb/internal/resolve"
	"github.com/ppiankov/stancedb/internal/sources"
	"github.com/ppiankov/stancedb/internal/store"
	"github.com/ppiankov/stancedb/internal/util"
	"github.com/ppiankov/stancedb/internal/worker"
)

// app holds the wired components shared by the commands
type app struct {
	cfg         *model.Config
	logger      *slog.Logger
	store       store.Store
	lookup      *lookup.Service
	coordinator *resolve.Coordinator
	metrics     *metrics.Metrics
}

// newApp opens the store and wires the resolve flow. A missing oracle API
// key is not fatal: lookups work and research fails with
// ORACLE_NOT_CONFIGURED.
func newApp(ctx context.Context, cfg *model.Config, logger *slog.Logger) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	provider, err := newProvider(cfg.LLM, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	m := metrics.New()
	lk := lookup.New(s, cfg.Policy.SearchLimit)

	oracle := research.NewOracle(provider,
		research.WithLimiter(worker.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)),
		research.WithTimeout(time.Duration(cfg.LLM.Timeout)*time.Second),
		research.WithSampling(cfg.LLM.MaxTokens, cfg.LLM.Temperature),
		research.WithLogger(logger),
	)

	opts := []resolve.Option{resolve.WithMetrics(m), resolve.WithLogger(logger)}
	if cfg.Cache.Enabled {
		opts = append(opts, resolve.WithCache(cache.NewMemoryCache(cfg.Cache.TTL, cfg.Cache.CleanupInterval)))
	}
	if cfg.Sources.Verify {
		opts = append(opts, resolve.WithSourceFilter(sources.NewChecker(cfg.Sources, nil, sourcesTransport(cfg.Sources), logger)))
	}

	coord := resolve.New(lk, oracle, populate.New(s, populate.PolicyFromModel(cfg.Policy), logger), opts...)

	return &app{
		cfg:         cfg,
		logger:      logger,
		store:       s,
		lookup:      lk,
		coordinator: coord,
		metrics:     m,
	}, nil
}

func newProvider(cfg model.LLMConfig, logger *slog.Logger) (llm.Provider, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg))
	if errors.Is(err, llm.ErrMissingAPIKey) {
		logger.Warn("research oracle disabled: no API key", "provider", cfg.Provider, "env", llm.APIKeyEnv(cfg.Provider))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}
	if provider == nil {
		logger.Warn("research oracle disabled by configuration")
	}
	return provider, nil
}

// sourcesTransport builds the checker's transport from the sources proxy
// settings only
func sourcesTransport(cfg model.SourcesConfig) *http.Transport {
	return util.NewTransport(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
}

// Close releases the store
func (a *app) Close() error {
	return a.store.Close()
}
