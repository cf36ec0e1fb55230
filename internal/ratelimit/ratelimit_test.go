package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type fakeLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allow, f.err
}

func (f *fakeLimiter) Window() time.Duration { return time.Minute }

func serve(l Limiter) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/v1/wallets", Middleware(l), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/wallets", nil))
	return w
}

func TestAllowPassesThrough(t *testing.T) {
	l := &fakeLimiter{allow: true}
	w := serve(l)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(l.keys) != 1 {
		t.Fatalf("limiter consulted %d times, want 1", len(l.keys))
	}
}

func TestDenyReturns429(t *testing.T) {
	w := serve(&fakeLimiter{allow: false})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("Retry-After = %q, want 60", got)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"success":false`) || !strings.Contains(body, "RATE_LIMIT_EXCEEDED") {
		t.Fatalf("unexpected envelope: %s", body)
	}
}

func TestLimiterErrorFailsOpen(t *testing.T) {
	w := serve(&fakeLimiter{err: errors.New("redis down")})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 when limiter is unavailable, got %d", w.Code)
	}
}
