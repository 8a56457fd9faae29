package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/upb/blog-admin/backend/middleware"
	"github.com/upb/blog-admin/backend/models"
	"github.com/upb/blog-admin/backend/services"
	"github.com/upb/blog-admin/backend/utils"
	"go.uber.org/zap"
)

// ModerationService is the subset of services.ModerationService used over HTTP
type ModerationService interface {
	ToggleAccountBlock(ctx context.Context, actor services.Actor, id string) (bool, error)
	ToggleBlogVerification(ctx context.Context, actor services.Actor, id string) (bool, error)
	DeleteBlog(ctx context.Context, actor services.Actor, id string) error
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	AccountStats(ctx context.Context) (*models.AccountStats, error)
	ListBlogs(ctx context.Context) ([]*models.BlogWithAuthor, error)
	ListEvents(ctx context.Context, limit int) ([]*models.ModerationEvent, error)
}

// AdminHandler handles the moderation endpoints. Every route is behind
// RequireAuth and RequireAdmin; mutations also pass RequireActiveAccount.
type AdminHandler struct {
	moderation ModerationService
	logger     *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(moderation ModerationService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		moderation: moderation,
		logger:     logger,
	}
}

// BlockResponse is returned by PUT /api/users/block/{id}
type BlockResponse struct {
	Success bool `json:"success"`
	Blocked bool `json:"blocked"`
}

// VerifyResponse is returned by PUT /api/blogs/verify/{id}
type VerifyResponse struct {
	Success  bool `json:"success"`
	Verified bool `json:"verified"`
}

// DeleteResponse is returned by DELETE /api/blogs/{id}
type DeleteResponse struct {
	Success bool `json:"success"`
}

// HandleListAccounts handles GET /api/users
func (h *AdminHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.moderation.ListAccounts(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, accounts)
}

// HandleStats handles GET /api/users/stats
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.moderation.AccountStats(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, stats)
}

// HandleToggleBlock handles PUT /api/users/block/{id}
func (h *AdminHandler) HandleToggleBlock(w http.ResponseWriter, r *http.Request) {
	blocked, err := h.moderation.ToggleAccountBlock(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, BlockResponse{Success: true, Blocked: blocked})
}

// HandleListBlogs handles GET /api/blogs
func (h *AdminHandler) HandleListBlogs(w http.ResponseWriter, r *http.Request) {
	blogs, err := h.moderation.ListBlogs(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, blogs)
}

// HandleToggleVerify handles PUT /api/blogs/verify/{id}
func (h *AdminHandler) HandleToggleVerify(w http.ResponseWriter, r *http.Request) {
	verified, err := h.moderation.ToggleBlogVerification(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, VerifyResponse{Success: true, Verified: verified})
}

// HandleDeleteBlog handles DELETE /api/blogs/{id}. A blog that is already
// gone answers 404 so the caller never reports a false success.
func (h *AdminHandler) HandleDeleteBlog(w http.ResponseWriter, r *http.Request) {
	if err := h.moderation.DeleteBlog(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, DeleteResponse{Success: true})
}

// HandleListAudit handles GET /api/admin/audit?limit=N
func (h *AdminHandler) HandleListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			_ = utils.WriteBadRequest(w, "limit must be a positive integer", map[string]interface{}{"limit": raw})
			return
		}
		limit = n
	}

	events, err := h.moderation.ListEvents(r.Context(), limit)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, events)
}

func actorFrom(r *http.Request) services.Actor {
	actor := services.Actor{RequestID: middleware.GetRequestIDFromContext(r.Context())}
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		actor.Email = claims.Email
	}
	return actor
}
