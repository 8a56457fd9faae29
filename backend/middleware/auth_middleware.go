package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/upb/blog-admin/backend/firebase"
	"github.com/upb/blog-admin/backend/internal/observability"
	"github.com/upb/blog-admin/backend/utils"
	"go.uber.org/zap"
)

// TokenVerifier verifies a raw identity provider credential
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, token string) (*firebase.VerifiedClaim, error)
}

// AuthMiddleware provides the access gate
type AuthMiddleware struct {
	verifier TokenVerifier
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(verifier TokenVerifier, metrics *observability.Metrics, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// SessionCookieName is set by the session handler and carries the provider credential.
// The Authorization header takes precedence when both are present.
const SessionCookieName = "session"

// RequireAuth verifies the caller's credential on every request
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := ExtractToken(r)
		if token == "" {
			m.metrics.RecordAuthOutcome("missing")
			m.logger.Warn("missing token",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		claims, err := m.verifier.VerifyIDToken(ctx, token)
		if err != nil {
			if errors.Is(err, firebase.ErrJWKSFetchFailed) {
				m.metrics.RecordAuthOutcome("unavailable")
				m.logger.Error("identity provider keys unavailable",
					zap.String("request_id", requestID),
					zap.Error(err))
				_ = utils.WriteServiceUnavailable(w, "Identity provider unavailable, retry later")
				return
			}
			m.metrics.RecordAuthOutcome("rejected")
			m.logger.Warn("token verification failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		m.metrics.RecordAuthOutcome("ok")
		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("uid", claims.UID),
			zap.String("email", claims.Email))

		next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
	})
}

// RequireAdmin admits callers whose verified claim carries the admin capability.
// Must run after RequireAuth. The stored account role is not consulted.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		claims := GetClaimsFromContext(ctx)
		if claims == nil {
			m.logger.Error("claims not found in context",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		if !claims.Admin {
			m.metrics.RecordAuthOutcome("forbidden")
			m.logger.Warn("admin capability required",
				zap.String("request_id", requestID),
				zap.String("email", claims.Email),
				zap.String("path", r.URL.Path))
			_ = utils.WriteForbidden(w, "Admin access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ExtractToken reads the credential from the Authorization header ("Bearer TOKEN")
// or from the session cookie.
func ExtractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
