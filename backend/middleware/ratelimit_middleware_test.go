package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/upb/blog-admin/backend/internal/observability"
	"github.com/upb/blog-admin/backend/services/ratelimit"
	"go.uber.org/zap"
)

// countingLimiter allows the first n calls per key
type countingLimiter struct {
	n     int
	seen  map[string]int
	err   error
	retry time.Duration
}

func (l *countingLimiter) Allow(_ context.Context, key string) (*ratelimit.Result, error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.seen == nil {
		l.seen = map[string]int{}
	}
	l.seen[key]++
	allowed := l.seen[key] <= l.n
	return &ratelimit.Result{Allowed: allowed, Limit: l.n, RetryAfter: l.retry}, nil
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := &countingLimiter{n: 2, retry: 42 * time.Second}
	metrics := observability.NewMetrics("test")
	mw := NewRateLimitMiddleware(limiter, nil, metrics, zap.NewNop())

	r := chi.NewRouter()
	r.With(mw.Limit).Get("/api/users/status/{email}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	do := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/users/status/a@example.com", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1111").Code)
	assert.Equal(t, http.StatusOK, do("10.0.0.1:2222").Code)

	w := do("10.0.0.1:3333")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "42", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do("10.0.0.2:1111").Code, "other clients have their own window")
	assert.Equal(t, 3, limiter.seen["10.0.0.1"])
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RateLimitedTotal.WithLabelValues("/api/users/status/{email}")))
}

func TestRateLimitMiddleware_LimiterError(t *testing.T) {
	mw := NewRateLimitMiddleware(&countingLimiter{err: errors.New("redis down")}, nil, nil, zap.NewNop())

	w := httptest.NewRecorder()
	mw.Limit(okHandler(t, nil)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRateLimitMiddleware_Noop(t *testing.T) {
	mw := NewRateLimitMiddleware(ratelimit.NoopLimiter{}, nil, nil, zap.NewNop())

	for i := 0; i < 100; i++ {
		w := httptest.NewRecorder()
		mw.Limit(okHandler(t, nil)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestClientIP(t *testing.T) {
	mw := NewRateLimitMiddleware(ratelimit.NoopLimiter{}, nil, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", mw.clientIP(req))

	req.RemoteAddr = "192.0.2.9"
	assert.Equal(t, "192.0.2.9", mw.clientIP(req))

	req.RemoteAddr = "[2001:db8::7]:443"
	assert.Equal(t, "2001:db8::7", mw.clientIP(req))

	req.RemoteAddr = "192.0.2.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")
	req.Header.Set("X-Real-IP", "203.0.113.6")
	assert.Equal(t, "192.0.2.1", mw.clientIP(req), "headers from an untrusted peer are ignored")
}

func TestClientIP_TrustedProxy(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	mw := NewRateLimitMiddleware(ratelimit.NoopLimiter{}, trusted, nil, zap.NewNop())

	tests := []struct {
		name string
		xff  []string
		real string
		want string
	}{
		{"no headers", nil, "", "10.0.0.2"},
		{"single hop", []string{"203.0.113.5"}, "", "203.0.113.5"},
		{"client-supplied prefix is skipped", []string{"198.51.100.1, 203.0.113.5"}, "", "203.0.113.5"},
		{"inner proxies are skipped", []string{"203.0.113.5, 10.1.1.1", "10.2.2.2"}, "", "203.0.113.5"},
		{"all hops trusted falls back to x-real-ip", []string{"10.1.1.1"}, "203.0.113.9", "203.0.113.9"},
		{"garbage hop stops at the peer", []string{"203.0.113.5, not-an-ip"}, "", "10.0.0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "10.0.0.2:40000"
			for _, v := range tt.xff {
				req.Header.Add("X-Forwarded-For", v)
			}
			if tt.real != "" {
				req.Header.Set("X-Real-IP", tt.real)
			}
			assert.Equal(t, tt.want, mw.clientIP(req))
		})
	}
}

func TestRateLimitMiddleware_SpoofedForwardingHeaders(t *testing.T) {
	limiter := &countingLimiter{n: 1}
	mw := NewRateLimitMiddleware(limiter, nil, observability.NewMetrics("test"), zap.NewNop())
	handler := mw.Limit(okHandler(t, nil))

	allowed := 0
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/users/status/a@example.com", nil)
		req.RemoteAddr = "198.51.100.7:1234"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("203.0.114.%d", i))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code == http.StatusOK {
			allowed++
		}
	}

	assert.Equal(t, 1, allowed)
	assert.Equal(t, map[string]int{"198.51.100.7": 5}, limiter.seen)
}
