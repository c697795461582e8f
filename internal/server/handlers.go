package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/stancedb/internal/model"
	"github.com/ppiankov/stancedb/internal/resolve"
)

// Default and maximum list sizes for the featured and top views
const (
	DefaultFeaturedLimit = 6
	DefaultTopLimit      = 3
	MaxListLimit         = 100
)

// NotFoundMessage is returned when research finds nothing reliable
const NotFoundMessage = "Unable to find reliable information about this entity"

// Resolver resolves a single name. *resolve.Coordinator implements it.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (*resolve.Result, error)
}

// Lookup answers read-only queries. *lookup.Service implements it.
type Lookup interface {
	Search(ctx context.Context, query string) ([]model.StanceRecord, error)
	Top(ctx context.Context, limit int) ([]model.StanceRecord, error)
	Featured(ctx context.Context, limit int) ([]model.StanceRecord, error)
}

// Pinger reports backend health. store.Store implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// SearchResponse is the body of GET /api/search
type SearchResponse struct {
	Results []model.StanceRecord `json:"results"`
	Error   string               `json:"error,omitempty"`
	Code    string               `json:"code,omitempty"`
}

// ListResponse is the body of the featured and top views
type ListResponse struct {
	Records []model.StanceRecord `json:"records"`
}

// ResolveRequest is the body of POST /api/search-ai
type ResolveRequest struct {
	Name string `json:"name" binding:"required"`
}

// ResolveResponse is a resolved record plus a human-readable outcome
type ResolveResponse struct {
	*model.StanceRecord
	Outcome string `json:"outcome"`
	Message string `json:"message"`
}

// Handlers holds the HTTP handlers
type Handlers struct {
	resolver Resolver
	lookup   Lookup
	health   Pinger
}

// NewHandlers creates handlers. health may be nil.
func NewHandlers(resolver Resolver, lookup Lookup, health Pinger) *Handlers {
	return &Handlers{resolver: resolver, lookup: lookup, health: health}
}

// HandleSearch handles GET /api/search?q=
//
//	200 OK: SearchResponse, empty results for a blank query
//	500 Internal Server Error: store failure
func (h *Handlers) HandleSearch(c *gin.Context) {
	logger := requestLogger(c)

	results, err := h.lookup.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		logger.Error("search failed", "query", c.Query("q"), "error", err)
		c.JSON(http.StatusInternalServerError, SearchResponse{
			Results: []model.StanceRecord{},
			Error:   "Search failed",
			Code:    "SEARCH_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, SearchResponse{Results: nonNil(results)})
}

// HandleResolve handles POST /api/search-ai
//
//	200 OK: ResolveResponse (found in database or freshly researched)
//	400 Bad Request: malformed body or blank name
//	404 Not Found: research found nothing reliable
//	500 Internal Server Error: research or persistence failure
func (h *Handlers) HandleResolve(c *gin.Context) {
	logger := requestLogger(c)

	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Request body must be JSON with a non-empty \"name\"",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	res, err := h.resolver.Resolve(c.Request.Context(), req.Name)
	if err != nil {
		status, body := resolveError(err)
		if status >= http.StatusInternalServerError {
			logger.Error("resolve failed", "name", req.Name, "code", body.Code, "error", err)
		} else {
			logger.Info("resolve unsuccessful", "name", req.Name, "code", body.Code)
		}
		c.JSON(status, body)
		return
	}

	logger.Info("resolved", "name", res.Record.Name, "outcome", res.Outcome)
	c.JSON(http.StatusOK, ResolveResponse{
		StanceRecord: res.Record,
		Outcome:      string(res.Outcome),
		Message:      res.Outcome.Message(),
	})
}

// HandleFeatured handles GET /api/featured?limit=
func (h *Handlers) HandleFeatured(c *gin.Context) {
	h.list(c, "featured", DefaultFeaturedLimit, h.lookup.Featured)
}

// HandleTop handles GET /api/top?limit=
func (h *Handlers) HandleTop(c *gin.Context) {
	h.list(c, "top", DefaultTopLimit, h.lookup.Top)
}

func (h *Handlers) list(c *gin.Context, view string, def int, fetch func(context.Context, int) ([]model.StanceRecord, error)) {
	limit := def
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = min(parsed, MaxListLimit)
		}
	}

	records, err := fetch(c.Request.Context(), limit)
	if err != nil {
		requestLogger(c).Error("list failed", "view", view, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to load " + view + " records",
			Code:  "LIST_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, ListResponse{Records: nonNil(records)})
}

// HandleHealth handles GET /healthz
func (h *Handlers) HandleHealth(c *gin.Context) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			requestLogger(c).Warn("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// resolveError maps a resolve error onto a status and body
func resolveError(err error) (int, ErrorResponse) {
	code := resolve.Code(err)
	switch code {
	case resolve.CodeEmptyQuery:
		return http.StatusBadRequest, ErrorResponse{Error: "Name is required", Code: code}
	case resolve.CodeNotFound:
		return http.StatusNotFound, ErrorResponse{Error: NotFoundMessage, Code: code}
	case resolve.CodeInvalidFormat:
		return http.StatusInternalServerError, ErrorResponse{Error: "Research returned an unreadable response", Code: code}
	case resolve.CodeResearchTimeout:
		return http.StatusInternalServerError, ErrorResponse{Error: "Research timed out", Code: code}
	case resolve.CodeResearchFailed:
		return http.StatusInternalServerError, ErrorResponse{Error: "Research failed", Code: code}
	case resolve.CodeOracleNotConfigured:
		return http.StatusInternalServerError, ErrorResponse{Error: "Research is not configured on this server", Code: code}
	case resolve.CodePersistFailed:
		return http.StatusInternalServerError, ErrorResponse{Error: "Research succeeded but the result could not be saved", Code: code}
	case resolve.CodeCanceled:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, ErrorResponse{Error: "Request timed out", Code: code}
		}
		return http.StatusServiceUnavailable, ErrorResponse{Error: "Request canceled", Code: code}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", Code: code}
	}
}

func requestLogger(c *gin.Context) *slog.Logger {
	if l, ok := c.Get(loggerKey); ok {
		if logger, ok := l.(*slog.Logger); ok {
			return logger
		}
	}
	return slog.Default()
}

func nonNil(recs []model.StanceRecord) []model.StanceRecord {
	if recs == nil {
		return []model.StanceRecord{}
	}
	return recs
}
