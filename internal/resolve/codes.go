package resolve

import (
	"context"
	"errors"

	"github.com/ppiankov/stancedb/internal/normalize"
	"github.com/ppiankov/stancedb/internal/populate"
	"github.com/ppiankov/stancedb/internal/research"
)

// Stable error codes reported to clients
const (
	CodeEmptyQuery          = "EMPTY_QUERY"
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidFormat       = "INVALID_RESEARCH_FORMAT"
	CodeResearchTimeout     = "RESEARCH_TIMEOUT"
	CodeResearchFailed      = "RESEARCH_FAILED"
	CodeOracleNotConfigured = "ORACLE_NOT_CONFIGURED"
	CodePersistFailed       = "PERSIST_FAILED"
	CodeCanceled            = "CANCELED"
	CodeInternal            = "INTERNAL"
)

// Code maps err to its stable code. Nil maps to "".
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, normalize.ErrEmptyQuery):
		return CodeEmptyQuery
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, research.ErrInvalidFormat):
		return CodeInvalidFormat
	case errors.Is(err, research.ErrTimeout):
		return CodeResearchTimeout
	case errors.Is(err, research.ErrNotConfigured):
		return CodeOracleNotConfigured
	case errors.Is(err, research.ErrFailed):
		return CodeResearchFailed
	case errors.Is(err, populate.ErrPersist):
		return CodePersistFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	default:
		return CodeInternal
	}
}
