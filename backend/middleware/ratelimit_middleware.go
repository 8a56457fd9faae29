package middleware

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/upb/blog-admin/backend/internal/observability"
	"github.com/upb/blog-admin/backend/services/ratelimit"
	"github.com/upb/blog-admin/backend/utils"
	"go.uber.org/zap"
)

// RateLimitMiddleware throttles unauthenticated lookups per client IP
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	trusted []netip.Prefix
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware. Forwarding headers
// are honoured only when the socket peer falls inside one of trusted.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, trusted []netip.Prefix, metrics *observability.Metrics, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		trusted: trusted,
		metrics: metrics,
		logger:  logger,
	}
}

// Limit rejects callers over their window with 429 and a Retry-After hint
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := m.clientIP(r)

		result, err := m.limiter.Allow(ctx, key)
		if err != nil {
			m.logger.Error("rate limiter unavailable",
				zap.String("request_id", GetRequestIDFromContext(ctx)),
				zap.Error(err))
			_ = utils.WriteServiceUnavailable(w, "")
			return
		}

		if !result.Allowed {
			route := r.URL.Path
			if rctx := chi.RouteContext(ctx); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.metrics.RecordRateLimited(route)
			m.logger.Warn("rate limit exceeded",
				zap.String("request_id", GetRequestIDFromContext(ctx)),
				zap.String("client", key),
				zap.String("route", route))
			_ = utils.WriteTooManyRequests(w, "", result.RetryAfter)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP is the socket peer. Behind a trusted proxy it is the right-most
// X-Forwarded-For entry that is not itself a trusted proxy, then X-Real-IP.
func (m *RateLimitMiddleware) clientIP(r *http.Request) string {
	peer, ok := parseAddr(r.RemoteAddr)
	if !ok {
		return r.RemoteAddr
	}
	if !m.isTrusted(peer) {
		return peer.String()
	}

	var hops []string
	for _, line := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(line, ",")...)
	}
	for i := len(hops) - 1; i >= 0; i-- {
		hop, ok := parseAddr(strings.TrimSpace(hops[i]))
		if !ok {
			return peer.String()
		}
		if !m.isTrusted(hop) {
			return hop.String()
		}
	}

	if realIP, ok := parseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ok {
		return realIP.String()
	}
	return peer.String()
}

func (m *RateLimitMiddleware) isTrusted(addr netip.Addr) bool {
	for _, p := range m.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// parseAddr accepts host:port or a bare address
func parseAddr(s string) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr().Unmap(), true
	}
	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}
