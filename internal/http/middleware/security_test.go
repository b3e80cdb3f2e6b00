package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveWithSecurity(t *testing.T, opt SecurityOptions, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders(opt))
	r.GET("/balance", func(c *gin.Context) { c.String(http.StatusOK, `{"balance":5}`) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/balance", nil)
	if mutate != nil {
		mutate(req)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	w := serveWithSecurity(t, SecurityOptions{}, nil)

	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %v", h)
	}
	// No opt-in groups without the flags.
	if h.Get("Permissions-Policy") != "" || h.Get("Cache-Control") != "" || h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("opt-in headers leaked: %v", h)
	}
}

func TestSecurityHeaders_ExposesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// The request-id middleware runs earlier in the real stack.
	r.Use(func(c *gin.Context) { c.Header("X-Request-ID", "req-9"); c.Next() })
	r.Use(SecurityHeaders(SecurityOptions{}))
	r.GET("/balance", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/balance", nil))
	if got := w.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "X-Request-ID") {
		t.Fatalf("Expose-Headers = %q, want X-Request-ID listed", got)
	}

	// Appending must not clobber headers someone else exposed.
	r2 := gin.New()
	r2.Use(func(c *gin.Context) {
		c.Header("X-Request-ID", "req-10")
		c.Header("Access-Control-Expose-Headers", "Idempotency-Replayed")
		c.Next()
	})
	r2.Use(SecurityHeaders(SecurityOptions{}))
	r2.GET("/balance", func(c *gin.Context) { c.Status(http.StatusOK) })

	w2 := httptest.NewRecorder()
	r2.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/balance", nil))
	got := w2.Header().Get("Access-Control-Expose-Headers")
	if !strings.Contains(got, "Idempotency-Replayed") || !strings.Contains(got, "X-Request-ID") {
		t.Fatalf("Expose-Headers = %q, want both values", got)
	}
}

func TestSecurityHeaders_PolicyAndNoStore(t *testing.T) {
	w := serveWithSecurity(t, SecurityOptions{NoStore: true, EnablePolicy: true}, nil)

	h := w.Header()
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("no-store trio missing: %v", h)
	}
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("policy headers missing: %v", h)
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	opt := SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}

	// Plain HTTP: never pin.
	w := serveWithSecurity(t, opt, nil)
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS emitted over plain HTTP")
	}

	// TLS-terminated here.
	w = serveWithSecurity(t, opt, func(req *http.Request) { req.TLS = &tls.ConnectionState{} })
	if got := w.Header().Get("Strict-Transport-Security"); !strings.Contains(got, "max-age=3600") {
		t.Fatalf("HSTS over TLS = %q", got)
	}

	// TLS terminated at the proxy.
	w = serveWithSecurity(t, opt, func(req *http.Request) { req.Header.Set("X-Forwarded-Proto", "HTTPS") })
	if w.Header().Get("Strict-Transport-Security") == "" {
		t.Fatalf("HSTS missing behind X-Forwarded-Proto proxy")
	}
}

func TestSecurityHeaders_HSTSMaxAgeDefault(t *testing.T) {
	// Zero max-age falls back to 180 days.
	w := serveWithSecurity(t, SecurityOptions{EnableHSTS: true}, func(req *http.Request) {
		req.TLS = &tls.ConnectionState{}
	})
	if got := w.Header().Get("Strict-Transport-Security"); !strings.Contains(got, "max-age=15552000") {
		t.Fatalf("default HSTS = %q, want 180 days", got)
	}
}

func Test_viaHTTPS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/balance", nil)
	if viaHTTPS(req) {
		t.Fatalf("plain request must not read as HTTPS")
	}
	req.Header.Set("X-Forwarded-Proto", "https")
	if !viaHTTPS(req) {
		t.Fatalf("forwarded-proto https not honored")
	}
	req.Header.Set("X-Forwarded-Proto", "http")
	req.TLS = &tls.ConnectionState{}
	if !viaHTTPS(req) {
		t.Fatalf("direct TLS not honored")
	}
}
