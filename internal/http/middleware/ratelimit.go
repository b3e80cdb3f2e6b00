// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a per-identity token-bucket rate limiter. Every
// mutating call here funnels into the single ledger write lock, so the
// limiter's job is to keep one caller hammering extend/like/vote from
// starving everyone else's critical sections. Buckets live in process
// memory and idle ones are swept opportunistically, which is the right
// trade-off for a single-process deployment; a horizontally scaled setup
// would want a shared (e.g. Redis-backed) limiter instead.
//
// Idempotent replays (flagged by IdempotencyValidator) skip the limiter:
// serving a recorded result costs no ledger lock time, so it should not
// cost tokens either.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to the identity that owns its token bucket. The
// returned key must be stable for the request and namespaced so user keys
// and IP keys never collide.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by the account identity when the request
// carries one (the "userID" context value set upstream) and by client IP
// otherwise. Usernames are trusted bearer tokens here, so per-user buckets
// are the norm and the IP fallback only covers unidentified traffic.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get("userID"); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

// bucket pairs a limiter with its last-touch time for idle eviction.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a token-bucket budget per identity key. Buckets are
// created on demand under a mutex and evicted after sitting idle for the
// TTL, swept during lookups rather than by a background goroutine. Safe
// for concurrent use.
type RateLimiter struct {
	rps     rate.Limit
	burst   int
	keyFn   keyFunc
	mu      sync.Mutex
	buckets map[string]*bucket

	idleTTL time.Duration
	lookups uint64
}

// NewRateLimiter builds a limiter replenishing rps tokens per second with
// the given burst size (values <= 0 coerce to 1), keyed by keyFn. Install
// it with Handler().
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		buckets: make(map[string]*bucket),
		idleTTL: 10 * time.Minute,
	}
}

// bucketFor returns the limiter for key, creating it if absent. Roughly
// every 5000 lookups it sweeps idle buckets first — before touching the
// requested key, so a stale bucket is evicted even when it is the one
// being fetched.
func (rl *RateLimiter) bucketFor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	rl.lookups++
	if rl.lookups >= 5000 {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.idleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		lim := b.limiter
		rl.mu.Unlock()
		return lim
	}

	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	rl.mu.Unlock()
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked this request as
// a replay of an already-completed operation. Handler() serves such
// requests without spending tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns the enforcing middleware. Replays pass through
// unlimited; everything else draws from its identity's bucket and gets a
// 429 with the standard error envelope and a Retry-After hint when the
// bucket is dry.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		lim := rl.bucketFor(rl.keyFn(c))
		if lim.Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
