// Package sources probes the URLs an oracle cites so that dead links can be
// dropped before a record is persisted.
package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/stancedb/internal/model"
	"github.com/ppiankov/stancedb/internal/util"
	"github.com/ppiankov/stancedb/internal/worker"
)

const (
	maxAttempts  = 3
	maxRedirects = 3
)

// backoffSleep is used between retries (injectable for tests)
var backoffSleep = time.Sleep

// Status is the probe outcome for one URL
type Status struct {
	URL        string
	StatusCode int
	Dead       bool
	Skipped    bool // disallowed by robots.txt, not probed
	Err        string
}

// Checker probes cited URLs with HEAD requests
type Checker struct {
	httpClient *http.Client
	limiter    *worker.Limiter
	robots     *RobotsChecker
	userAgent  string
	workers    int
	logger     *slog.Logger
}

// NewChecker builds a checker from config. limiter throttles probes per
// registrable domain; nil allows two requests per second per domain.
func NewChecker(cfg model.SourcesConfig, limiter *worker.Limiter, transport http.RoundTripper, logger *slog.Logger) *Checker {
	if transport == nil {
		transport = util.NewTransport("", "", "")
	}
	if limiter == nil {
		limiter = worker.NewLimiter(2, 2)
	}
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	c := &Checker{
		httpClient: client,
		limiter:    limiter,
		userAgent:  cfg.UserAgent,
		workers:    workers,
		logger:     logger,
	}
	if cfg.RespectRobots {
		c.robots = NewRobotsChecker(client, cfg.UserAgent)
	}
	return c
}

// Check probes every URL concurrently and returns statuses in input order
func (c *Checker) Check(ctx context.Context, urls []string) []Status {
	results := make([]Status, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, u := range urls {
		g.Go(func() error {
			results[i] = c.probe(gctx, u)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Live returns the URLs that were not found dead, keeping their order.
// Skipped and transiently failing URLs are kept.
func (c *Checker) Live(ctx context.Context, urls []string) []string {
	live := make([]string, 0, len(urls))
	for _, st := range c.Check(ctx, urls) {
		if st.Dead {
			c.logger.Debug("dropping dead source", "url", st.URL, "status", st.StatusCode, "error", st.Err)
			continue
		}
		live = append(live, st.URL)
	}
	return live
}

func (c *Checker) probe(ctx context.Context, rawURL string) Status {
	var delay time.Duration
	if c.robots != nil {
		allowed, crawlDelay, err := c.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return Status{URL: rawURL, Dead: true, Err: err.Error()}
		}
		if !allowed {
			return Status{URL: rawURL, Skipped: true}
		}
		delay = crawlDelay
	}

	domain, err := worker.RegistrableDomain(rawURL)
	if err != nil {
		return Status{URL: rawURL, Dead: true, Err: err.Error()}
	}

	var st Status
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := c.limiter.WaitWithDelay(ctx, domain, delay); err != nil {
			return Status{URL: rawURL, Err: err.Error()}
		}

		st = c.head(ctx, rawURL)
		if !retryable(st) {
			return st
		}
		if attempt < maxAttempts-1 {
			backoffSleep(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}
	return st
}

func (c *Checker) head(ctx context.Context, rawURL string) Status {
	st := Status{URL: rawURL}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		st.Dead = true
		st.Err = fmt.Sprintf("create request: %v", err)
		return st
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		st.Err = fmt.Sprintf("request failed: %v", err)
		// A cancelled caller says nothing about the link
		st.Dead = ctx.Err() == nil && !errors.Is(err, context.Canceled)
		return st
	}
	defer func() { _ = resp.Body.Close() }()

	st.StatusCode = resp.StatusCode
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		st.Dead = true
	}
	return st
}

// retryable reports transient failures: 5xx, 429 and flaky network errors
func retryable(st Status) bool {
	if st.StatusCode >= 500 && st.StatusCode < 600 {
		return true
	}
	if st.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if st.Err == "" {
		return false
	}
	s := strings.ToLower(st.Err)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
