// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file carries the request-correlation trio: RequestID stamps every
// request with a stable X-Request-ID, Logger emits one structured access
// line per request (leveled by outcome) and parks a request-scoped
// zerolog.Logger in the context, and Recovery turns panics into the
// standard JSON 500 envelope without losing the correlation id. Order
// matters: RequestID, then Logger, then Recovery, so a panic during an
// extend or vote still logs with its request id attached.
//
// Handlers and services pick up the scoped logger with LoggerFrom, e.g.
// LoggerFrom(c).Info().Str("challenge_id", id).Msg("finalized").
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key holding the correlation id.
	requestIDKey = "requestID"
	// requestIDHeader propagates the correlation id to and from clients.
	requestIDHeader = "X-Request-ID"
	// maxQueryLogBytes bounds how much raw query string ends up in a log line.
	maxQueryLogBytes = 2048
)

// RequestID reuses an inbound X-Request-ID when the client sent one and
// mints a UUIDv4 otherwise, storing it in the context and echoing it on
// the response. Install it first so everything downstream can correlate.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger writes one access-log line per request: method, route, caller
// identity, sizes, status, and latency. The level follows the outcome —
// error for 5xx or collected Gin errors, warn for 4xx, info otherwise —
// so a flood of cap-exceeded 422s is visible without drowning the log.
// The request-scoped logger lands under the "logger" context key.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		uid, _ := c.Get("userID")
		path := c.FullPath()
		if path == "" {
			// Unmatched route (404): fall back to the raw path.
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("request_id", ctxString(rid)).
			Str("user_id", ctxString(uid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("referer", c.Request.Referer()).
			Str("query", clip(c.Request.URL.RawQuery, maxQueryLogBytes)).
			Int64("bytes_in", c.Request.ContentLength).
			Logger()

		c.Set("logger", &l)

		c.Next()

		ev := l.With().
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Logger()

		switch {
		case len(c.Errors) > 0:
			ev.Error().Str("errors", c.Errors.String()).Msg("request")
		case c.Writer.Status() >= 500:
			ev.Error().Msg("request")
		case c.Writer.Status() >= 400:
			ev.Warn().Msg("request")
		default:
			ev.Info().Msg("request")
		}
	}
}

// Recovery logs the panic with its stack and request id, then responds
// with the standard JSON 500 envelope — unless a handler already wrote a
// body, in which case only the status is forced.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid, _ := c.Get(requestIDKey)
				log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("request_id", ctxString(rid)).
					Msg("panic recovered")

				if !c.Writer.Written() {
					c.Header("Content-Type", "application/json")
					c.Header(requestIDHeader, ctxString(rid))
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"request_id": ctxString(rid),
						"code":       "internal_error",
						"message":    "internal server error",
					})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global one when no
// Logger middleware ran. Never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// ctxString reads a context value as a string, empty for anything else.
func ctxString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// clip bounds s to max bytes with an ellipsis; max <= 0 disables
// clipping. Byte-level is fine for log output.
func clip(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
