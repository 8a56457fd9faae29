package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/upb/blog-admin/backend/firebase"
	"github.com/upb/blog-admin/backend/middleware"
	"github.com/upb/blog-admin/backend/models"
	"github.com/upb/blog-admin/backend/services"
	"github.com/upb/blog-admin/backend/utils"
	"go.uber.org/zap"
)

// PrincipalService is the subset of services.PrincipalService used over HTTP
type PrincipalService interface {
	RegisterOrSync(ctx context.Context, claim *firebase.VerifiedClaim, hints models.ProfileHints) (*models.Account, error)
	Current(ctx context.Context, claim *firebase.VerifiedClaim) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	BlockedStatus(ctx context.Context, email string) (*services.BlockedStatus, error)
}

// PrincipalHandler handles account registration and lookups
type PrincipalHandler struct {
	principals PrincipalService
	logger     *zap.Logger
}

// NewPrincipalHandler creates a new PrincipalHandler
func NewPrincipalHandler(principals PrincipalService, logger *zap.Logger) *PrincipalHandler {
	return &PrincipalHandler{
		principals: principals,
		logger:     logger,
	}
}

// CheckBlockedRequest is the body of POST /api/users/check-blocked
type CheckBlockedRequest struct {
	Email string `json:"email" validate:"required,email,max=320"`
}

// HandleRegister handles POST /api/users/register.
// The body is optional; absent hints fall back to the profile carried by the token.
func (h *PrincipalHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := middleware.GetClaimsFromContext(ctx)
	if claims == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var hints models.ProfileHints
	if err := utils.DecodeJSON(r, &hints); err != nil && !errors.Is(err, utils.ErrEmptyBody) {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&hints); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if hints.Name == "" {
		hints.Name = claims.Name
	}
	if hints.PhotoURL == "" {
		hints.PhotoURL = claims.Picture
	}

	account, err := h.principals.RegisterOrSync(ctx, claims, hints)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, account); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleCheckBlocked handles POST /api/users/check-blocked
func (h *PrincipalHandler) HandleCheckBlocked(w http.ResponseWriter, r *http.Request) {
	var req CheckBlockedRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	status, err := h.principals.BlockedStatus(r.Context(), req.Email)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, status)
}

// HandleStatus handles GET /api/users/status/{email}.
// Unknown emails answer 404 with {"blocked": false}.
func (h *PrincipalHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	email, ok := emailParam(w, r)
	if !ok {
		return
	}

	status, err := h.principals.BlockedStatus(r.Context(), email)
	if err != nil {
		if services.IsNotFoundError(err) {
			_ = utils.WriteJSON(w, http.StatusNotFound, services.BlockedStatus{Blocked: false})
			return
		}
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, status)
}

// HandleMe handles GET /api/users/me
func (h *PrincipalHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := middleware.GetClaimsFromContext(ctx)
	if claims == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	account, err := h.principals.Current(ctx, claims)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, account)
}

// HandleGetByEmail handles GET /api/users/{email}. Callers may read their own
// account; reading anyone else's requires the admin capability.
func (h *PrincipalHandler) HandleGetByEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := middleware.GetClaimsFromContext(ctx)
	if claims == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	email, ok := emailParam(w, r)
	if !ok {
		return
	}

	if !claims.Admin && models.NormalizeEmail(email) != models.NormalizeEmail(claims.Email) {
		h.logger.Warn("account lookup denied",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.String("caller", claims.Email))
		_ = utils.WriteForbidden(w, "Admin access required")
		return
	}

	account, err := h.principals.GetByEmail(ctx, email)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, account)
}

// emailParam reads and unescapes the {email} path segment
func emailParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "email")
	email, err := url.PathUnescape(raw)
	if err != nil || utils.ValidateEmail(email) != nil {
		_ = utils.WriteBadRequest(w, "A valid email is required", map[string]interface{}{"email": raw})
		return "", false
	}
	return email, true
}
