package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/upb/blog-admin/backend/config"
	"github.com/upb/blog-admin/backend/firebase"
	"github.com/upb/blog-admin/backend/handlers"
	"github.com/upb/blog-admin/backend/middleware"
	"github.com/upb/blog-admin/backend/models"
	"github.com/upb/blog-admin/backend/services"
	"github.com/upb/blog-admin/backend/utils"
	"go.uber.org/zap"
)

// TokenVerifier verifies the provider credential presented at sign-in
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, token string) (*firebase.VerifiedClaim, error)
}

// SessionEstablisher registers the caller and applies block enforcement
type SessionEstablisher interface {
	Establish(ctx context.Context, claim *firebase.VerifiedClaim, hints models.ProfileHints) (*models.Account, error)
}

// Handler handles session establishment and logout.
type Handler struct {
	cfg      config.SessionConfig
	verifier TokenVerifier
	sessions SessionEstablisher
	logger   *zap.Logger
}

// NewHandler creates a new auth handler
func NewHandler(cfg config.SessionConfig, verifier TokenVerifier, sessions SessionEstablisher, logger *zap.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		verifier: verifier,
		sessions: sessions,
		logger:   logger,
	}
}

// HandleSession handles POST /auth/session. It verifies the bearer credential,
// registers or syncs the account and, unless the account is blocked, stores the
// credential in an HttpOnly session cookie.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	token := middleware.ExtractToken(r)
	if token == "" {
		_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
		return
	}

	claims, err := h.verifier.VerifyIDToken(ctx, token)
	if err != nil {
		if errors.Is(err, firebase.ErrJWKSFetchFailed) {
			h.logger.Error("identity provider keys unavailable",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteServiceUnavailable(w, "Identity provider unavailable, retry later")
			return
		}
		h.logger.Warn("session credential rejected",
			zap.String("request_id", requestID),
			zap.Error(err))
		h.clearSessionCookie(w)
		_ = utils.WriteUnauthorized(w, "Invalid or expired token")
		return
	}

	var hints models.ProfileHints
	if err := utils.DecodeJSON(r, &hints); err != nil && !errors.Is(err, utils.ErrEmptyBody) {
		handlers.HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&hints); err != nil {
		handlers.HandleValidationError(w, err, h.logger)
		return
	}
	if hints.Name == "" {
		hints.Name = claims.Name
	}
	if hints.PhotoURL == "" {
		hints.PhotoURL = claims.Picture
	}

	account, err := h.sessions.Establish(ctx, claims, hints)
	if err != nil {
		if services.IsSuspendedError(err) {
			h.clearSessionCookie(w)
		}
		handlers.HandleServiceError(w, err, h.logger)
		return
	}

	h.setSessionCookie(w, token, claims.ExpiresAt)

	h.logger.Info("session established",
		zap.String("request_id", requestID),
		zap.String("account_id", account.ID.String()),
		zap.Bool("admin", claims.Admin))

	_ = utils.WriteOK(w, account)
}

// HandleLogout clears the session cookie
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	_ = utils.WriteOK(w, map[string]bool{"success": true})
}

// setSessionCookie never outlives the credential it carries
func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	maxAge := h.cfg.MaxAge
	if !expiresAt.IsZero() {
		if remaining := time.Until(expiresAt); remaining < maxAge {
			maxAge = remaining
		}
	}
	if maxAge < time.Second {
		maxAge = time.Second
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
