package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/blog-admin/backend/app"
	"github.com/upb/blog-admin/backend/middleware"
	"github.com/upb/blog-admin/backend/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	requestTimeout := deps.Config.Server.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(deps.Metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health and metrics
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)
	if deps.Config.Observability.MetricsEnabled {
		path := deps.Config.Observability.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, deps.Metrics.Handler())
	}

	// Session establishment
	r.Route("/auth", func(r chi.Router) {
		r.Post("/session", deps.AuthHandler.HandleSession)
		r.Post("/logout", deps.AuthHandler.HandleLogout)
	})

	authMW := deps.AuthMiddleware
	activeMW := deps.SessionMiddleware

	r.Route("/api", func(r chi.Router) {
		// Public lookups, throttled per client
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimitMiddleware.Limit)
			r.Post("/users/check-blocked", deps.PrincipalHandler.HandleCheckBlocked)
			r.Get("/users/status/{email}", deps.PrincipalHandler.HandleStatus)
		})

		// Any verified principal
		r.Group(func(r chi.Router) {
			r.Use(authMW.RequireAuth)
			r.Post("/users/register", deps.PrincipalHandler.HandleRegister)
			r.Get("/users/me", deps.PrincipalHandler.HandleMe)
			r.Get("/users/{email}", deps.PrincipalHandler.HandleGetByEmail)
		})

		// Admin routes re-check suspension on every request
		r.Group(func(r chi.Router) {
			r.Use(authMW.RequireAuth)
			r.Use(authMW.RequireAdmin)
			r.Use(activeMW.RequireActiveAccount)
			r.Get("/users", deps.AdminHandler.HandleListAccounts)
			r.Get("/users/stats", deps.AdminHandler.HandleStats)
			r.Get("/blogs", deps.AdminHandler.HandleListBlogs)
			r.Get("/admin/audit", deps.AdminHandler.HandleListAudit)
			r.Put("/users/block/{id}", deps.AdminHandler.HandleToggleBlock)
			r.Put("/blogs/verify/{id}", deps.AdminHandler.HandleToggleVerify)
			r.Delete("/blogs/{id}", deps.AdminHandler.HandleDeleteBlog)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteJSON(w, http.StatusMethodNotAllowed, utils.ErrorResponse{
			Error:   "method_not_allowed",
			Message: "Method not allowed",
		})
	})

	return r
}
