// Package server exposes stance lookups over JSON/HTTP.
package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ppiankov/stancedb/internal/metrics"
)

// RequestIDHeader carries the per-request correlation ID
const RequestIDHeader = "X-Request-ID"

const loggerKey = "logger"

// NewRouter builds the gin engine with middleware and all routes
func NewRouter(h *Handlers, m *metrics.Metrics, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware(logger))
	router.Use(MetricsMiddleware(m))

	RegisterRoutes(router, h)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	return router
}

// RegisterRoutes mounts the API and health routes
func RegisterRoutes(router gin.IRouter, h *Handlers) {
	api := router.Group("/api")
	{
		api.GET("/search", h.HandleSearch)
		api.POST("/search-ai", h.HandleResolve)
		api.GET("/featured", h.HandleFeatured)
		api.GET("/top", h.HandleTop)
	}
	router.GET("/healthz", h.HandleHealth)
}

// RequestIDMiddleware reuses the caller's X-Request-ID or generates one,
// echoes it back and attaches a request-scoped logger.
func RequestIDMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		reqLogger := logger.With("request_id", requestID)
		c.Set(loggerKey, reqLogger)

		start := time.Now()
		c.Next()

		reqLogger.Debug("request served",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// MetricsMiddleware records request counts and latency per route template
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
