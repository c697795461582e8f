// Package resolve answers "what is X's stance", reading from the store when
// the entity is known and researching and persisting it when it is not.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/stancedb/internal/cache"
	"github.com/ppiankov/stancedb/internal/lookup"
	"github.com/ppiankov/stancedb/internal/metrics"
	"github.com/ppiankov/stancedb/internal/model"
	"github.com/ppiankov/stancedb/internal/normalize"
	"github.com/ppiankov/stancedb/internal/populate"
	"github.com/ppiankov/stancedb/internal/research"
	"github.com/ppiankov/stancedb/internal/store"
)

// ErrNotFound means research found nothing reliable enough to persist
var ErrNotFound = errors.New("resolve: no reliable information")

// Outcome tells how a record was obtained
type Outcome string

const (
	OutcomeHit        Outcome = "hit"
	OutcomeResearched Outcome = "researched"
)

// Message is the user-facing description of the outcome
func (o Outcome) Message() string {
	if o == OutcomeResearched {
		return "Research complete and saved"
	}
	return "Found in database"
}

// Result is a resolved record and how it was obtained
type Result struct {
	Record  *model.StanceRecord
	Outcome Outcome
}

// Researcher investigates an unknown entity. *research.Oracle implements it.
type Researcher interface {
	Research(ctx context.Context, name string) (*research.Result, error)
}

// SourceFilter drops unusable source URLs. *sources.Checker implements it.
type SourceFilter interface {
	Live(ctx context.Context, urls []string) []string
}

// Coordinator runs the lookup-or-research flow. Concurrent resolves of the
// same normalized name share a single research call.
type Coordinator struct {
	lookup    *lookup.Service
	oracle    Researcher
	populator *populate.Populator
	cache     cache.Cache
	sources   SourceFilter
	metrics   *metrics.Metrics
	logger    *slog.Logger

	flights singleflight.Group
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithCache fronts the store with a hot-record cache
func WithCache(c cache.Cache) Option {
	return func(co *Coordinator) {
		if c != nil {
			co.cache = c
		}
	}
}

// WithSourceFilter verifies cited sources before persisting
func WithSourceFilter(f SourceFilter) Option {
	return func(co *Coordinator) { co.sources = f }
}

// WithMetrics records outcomes on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(co *Coordinator) { co.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(co *Coordinator) {
		if l != nil {
			co.logger = l
		}
	}
}

// New creates a coordinator. A nil oracle makes every miss fail with
// research.ErrNotConfigured.
func New(lk *lookup.Service, oracle Researcher, pop *populate.Populator, opts ...Option) *Coordinator {
	c := &Coordinator{
		lookup:    lk,
		oracle:    oracle,
		populator: pop,
		cache:     cache.Noop{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the record for raw, researching and persisting it on a
// store miss. If ctx ends while waiting on research, Resolve returns
// ctx.Err() and the research and persist still run to completion.
func (c *Coordinator) Resolve(ctx context.Context, raw string) (*Result, error) {
	res, err := c.resolve(ctx, raw)
	c.metrics.ObserveResolve(label(res, err))
	return res, err
}

func (c *Coordinator) resolve(ctx context.Context, raw string) (*Result, error) {
	name, err := normalize.Normalize(raw)
	if err != nil {
		return nil, err
	}

	rec, err := c.find(ctx, name)
	if err == nil {
		return &Result{Record: rec, Outcome: OutcomeHit}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	ch := c.flights.DoChan(name.Key, func() (any, error) {
		return c.researchAndPersist(context.WithoutCancel(ctx), name)
	})

	select {
	case <-ctx.Done():
		c.logger.Info("resolve abandoned by caller, research continues", "name", name.Display)
		return nil, ctx.Err()
	case r := <-ch:
		if r.Shared {
			c.metrics.ObserveShared()
		}
		if r.Err != nil {
			return nil, r.Err
		}
		shared := r.Val.(*Result)
		return &Result{Record: copyRecord(shared.Record), Outcome: shared.Outcome}, nil
	}
}

// find checks the hot cache, then the store
func (c *Coordinator) find(ctx context.Context, name normalize.Name) (*model.StanceRecord, error) {
	key := cache.Key(name.Key)
	if rec, ok := c.cache.Get(key); ok {
		c.metrics.ObserveCache(true)
		return rec, nil
	}
	c.metrics.ObserveCache(false)

	rec, err := c.lookup.Exact(ctx, name)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, rec)
	return rec, nil
}

func (c *Coordinator) researchAndPersist(ctx context.Context, name normalize.Name) (*Result, error) {
	logger := c.logger.With("name", name.Display)

	// Another flight or process may have persisted it since the first lookup
	if rec, err := c.lookup.Exact(ctx, name); err == nil {
		c.cache.Set(cache.Key(name.Key), rec)
		return &Result{Record: rec, Outcome: OutcomeHit}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if c.oracle == nil {
		return nil, research.ErrNotConfigured
	}

	start := time.Now()
	found, err := c.oracle.Research(ctx, name.Display)
	c.metrics.ObserveResearch(researchLabel(err), time.Since(start))
	if err != nil {
		return nil, err
	}

	if c.sources != nil && len(found.Sources) > 0 {
		live := c.sources.Live(ctx, found.Sources)
		if dropped := len(found.Sources) - len(live); dropped > 0 {
			logger.Info("dropped unreachable sources", "dropped", dropped, "kept", len(live))
		}
		found.Sources = live
	}

	rec, created, err := c.populator.Populate(ctx, name, found)
	if err != nil {
		if errors.Is(err, populate.ErrLowConfidence) || errors.Is(err, populate.ErrInsufficientSources) {
			logger.Info("research result rejected", "reason", err)
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}

	c.cache.Set(cache.Key(name.Key), rec)
	if !created {
		return &Result{Record: rec, Outcome: OutcomeHit}, nil
	}
	return &Result{Record: rec, Outcome: OutcomeResearched}, nil
}

func copyRecord(rec *model.StanceRecord) *model.StanceRecord {
	cp := *rec
	cp.Sources = append([]string(nil), rec.Sources...)
	return &cp
}

func label(res *Result, err error) string {
	if err != nil {
		return Code(err)
	}
	return string(res.Outcome)
}

func researchLabel(err error) string {
	if err != nil {
		return Code(err)
	}
	return "ok"
}
