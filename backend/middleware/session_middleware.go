package middleware

import (
	"context"
	"net/http"

	"github.com/upb/blog-admin/backend/firebase"
	"github.com/upb/blog-admin/backend/models"
	"github.com/upb/blog-admin/backend/services"
	"github.com/upb/blog-admin/backend/utils"
	"go.uber.org/zap"
)

// ActiveAccountChecker loads the caller's account and rejects suspended ones
type ActiveAccountChecker interface {
	RequireActive(ctx context.Context, claim *firebase.VerifiedClaim) (*models.Account, error)
}

// SessionMiddleware re-checks suspension before admin operations
type SessionMiddleware struct {
	checker ActiveAccountChecker
	logger  *zap.Logger
}

// NewSessionMiddleware creates a new SessionMiddleware
func NewSessionMiddleware(checker ActiveAccountChecker, logger *zap.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		checker: checker,
		logger:  logger,
	}
}

// RequireActiveAccount must run after RequireAuth. Blocked callers get 403
// account_suspended and the client is told to terminate the session.
func (m *SessionMiddleware) RequireActiveAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		claims := GetClaimsFromContext(ctx)
		if claims == nil {
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		account, err := m.checker.RequireActive(ctx, claims)
		if err != nil {
			switch {
			case services.IsSuspendedError(err):
				_ = utils.WriteSuspended(w, "")
			case services.IsForbiddenError(err):
				_ = utils.WriteForbidden(w, "Session has not been established")
			case services.IsUnavailableError(err):
				_ = utils.WriteServiceUnavailable(w, "")
			default:
				m.logger.Error("active account check failed",
					zap.String("request_id", requestID),
					zap.Error(err))
				_ = utils.WriteInternalServerError(w, "")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAccount(ctx, account)))
	})
}
