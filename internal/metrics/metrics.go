// Package metrics defines the Prometheus instruments exported on /metrics.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stancedb"

// Metrics groups the service's collectors around one registry
type Metrics struct {
	registry *prometheus.Registry

	// resolveTotal counts resolve calls by terminal outcome.
	// Labels: outcome (hit, researched, or an error code)
	resolveTotal *prometheus.CounterVec

	// cacheTotal counts hot-cache lookups.
	// Labels: result (hit, miss)
	cacheTotal *prometheus.CounterVec

	// researchSeconds measures oracle latency.
	// Labels: result (ok, or an error code)
	researchSeconds *prometheus.HistogramVec

	// sharedTotal counts resolve calls whose research was shared with a concurrent call
	sharedTotal prometheus.Counter

	httpTotal   *prometheus.CounterVec
	httpSeconds *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		resolveTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolve",
			Name:      "total",
			Help:      "Resolve calls by terminal outcome",
		}, []string{"outcome"}),
		cacheTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Hot-record cache lookups by result",
		}, []string{"result"}),
		researchSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "research",
			Name:      "duration_seconds",
			Help:      "Oracle research latency",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"result"}),
		sharedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolve",
			Name:      "shared_total",
			Help:      "Resolve calls whose research was shared with a concurrent call for the same name",
		}),
		httpTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveResolve records a resolve outcome
func (m *Metrics) ObserveResolve(outcome string) {
	if m == nil {
		return
	}
	m.resolveTotal.WithLabelValues(outcome).Inc()
}

// ObserveCache records a hot-cache lookup
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}

// ObserveResearch records an oracle call
func (m *Metrics) ObserveResearch(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.researchSeconds.WithLabelValues(result).Observe(d.Seconds())
}

// ObserveShared records a resolve whose research was shared
func (m *Metrics) ObserveShared() {
	if m == nil {
		return
	}
	m.sharedTotal.Inc()
}

// ObserveHTTP records a served request
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}
