// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file sets conservative security headers for a JSON API sitting
// behind a reverse proxy. No CSP — the server renders no HTML; the feed
// clients consume JSON only. HSTS is opt-in and emitted only when the
// request actually arrived over HTTPS (directly or via X-Forwarded-Proto),
// so a plain-HTTP dev setup never pins itself.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures the emitted headers.
//
// EnableHSTS must only be set when traffic is HTTPS end to end, proxy hop
// included. HSTSMaxAge defaults to 180 days when unset. NoStore adds
// Cache-Control: no-store (plus the legacy Pragma/Expires pair) — balances
// and vote tallies are per-caller state that intermediaries must not
// cache. EnablePolicy adds browser feature restrictions; harmless for
// non-browser clients.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	NoStore      bool
	EnablePolicy bool
}

// SecurityHeaders returns middleware applying the configured headers.
//
// Always set: X-Content-Type-Options: nosniff, X-Frame-Options: DENY,
// Referrer-Policy: no-referrer. The optional groups follow
// SecurityOptions. When an X-Request-ID is already on the response it is
// added to Access-Control-Expose-Headers so browser clients can read the
// correlation id.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && viaHTTPS(c.Request) {
			h.Set("Strict-Transport-Security",
				"max-age="+strconv.Itoa(maxAge)+"; includeSubDomains; preload")
		}

		if rid := h.Get("X-Request-ID"); rid != "" {
			const hdr = "Access-Control-Expose-Headers"
			cur := h.Get(hdr)
			switch {
			case cur == "":
				h.Set(hdr, "X-Request-ID")
			case !strings.Contains(cur, "X-Request-ID"):
				h.Set(hdr, cur+", X-Request-ID")
			}
		}

		c.Next()
	}
}

// viaHTTPS reports whether the request used HTTPS, either terminated here
// or at a proxy that set X-Forwarded-Proto.
func viaHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
