// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all endpoints,
// including structured error envelopes, consistent JSON serialization, and
// helpers for common HTTP patterns. The goal is to guarantee uniform responses
// for both success and failure cases, making the API predictable and
// machine-friendly.
//
// Conventions:
//   - All error responses must return an ErrorResponse with a stable `code`.
//   - `fail()` centralizes error logging and formatting, ensuring 5xx responses
//     are logged with request context for observability.
//   - `failErr()` maps service sentinel errors onto status/code pairs so each
//     handler only deals with its happy path.
//   - `ok()` and `noContent()` simplify writing success responses in a consistent
//     shape across handlers.
//
// Example error response:
//
//	HTTP/1.1 402 Payment Required
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "insufficient_funds",
//	  "message": "balance too low"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timelylabs/timely-backend/internal/http/middleware"
	"github.com/timelylabs/timely-backend/internal/services"
	"github.com/timelylabs/timely-backend/internal/store"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
//
// Fields:
//   - RequestID: Optional correlation ID, echoed from X-Request-ID header, used
//     to correlate server logs with client-side errors.
//   - Code: A stable, machine-readable string (see errors.go constants).
//   - Message: A human-readable error description, safe for display to users.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
}

// fail aborts the request with a structured error and logs server-side errors.
//
// It constructs an ErrorResponse, writes it as JSON with the given HTTP status,
// and calls gin.Context.AbortWithStatusJSON to stop further processing.
//
// Server errors (>=500) are logged using the request-scoped logger from middleware.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	}

	// Log 5xx (server-side) with request-scoped logger
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail().
//
// External packages (e.g., router setup) should call Fail to return
// consistent error envelopes without directly depending on unexported helpers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr translates a service error into the matching HTTP response.
// Unknown errors become an opaque 500 so internals never leak to clients.
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidUsername),
		errors.Is(err, services.ErrEmptyContent),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidWindow),
		errors.Is(err, services.ErrSelfFollow):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrPostNotFound),
		errors.Is(err, services.ErrChallengeNotFound),
		errors.Is(err, services.ErrEntryNotFound),
		errors.Is(err, services.ErrItemNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrPostExpired):
		fail(c, http.StatusGone, ErrCodeExpired, err.Error())
	case errors.Is(err, services.ErrInsufficientFunds):
		fail(c, http.StatusPaymentRequired, ErrCodeInsufficientFunds, err.Error())
	case errors.Is(err, services.ErrBonusClaimed),
		errors.Is(err, services.ErrAlreadyLiked):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrAuthorCapExceeded),
		errors.Is(err, services.ErrVoteCapExceeded):
		fail(c, http.StatusUnprocessableEntity, ErrCodeCapExceeded, err.Error())
	case errors.Is(err, services.ErrChallengeNotLive):
		fail(c, http.StatusConflict, ErrCodeNotLive, err.Error())
	case errors.Is(err, services.ErrChallengeFinished):
		fail(c, http.StatusConflict, ErrCodeFinished, err.Error())
	case errors.Is(err, store.ErrBusy):
		fail(c, http.StatusServiceUnavailable, ErrCodeBusy, "ledger busy, retry")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}

// ok writes a success JSON response.
//
// It serializes `body` as JSON with the given HTTP status code.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
//
// Used when the operation succeeds but there is no response body.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
