package app

import (
	"context"
	"fmt"
	"io"

	"github.com/upb/blog-admin/backend/auth"
	"github.com/upb/blog-admin/backend/config"
	"github.com/upb/blog-admin/backend/firebase"
	"github.com/upb/blog-admin/backend/handlers"
	"github.com/upb/blog-admin/backend/internal/observability"
	"github.com/upb/blog-admin/backend/middleware"
	"github.com/upb/blog-admin/backend/repositories"
	"github.com/upb/blog-admin/backend/repositories/mongostore"
	"github.com/upb/blog-admin/backend/repositories/postgres"
	"github.com/upb/blog-admin/backend/services"
	"github.com/upb/blog-admin/backend/services/ratelimit"
	"go.uber.org/zap"
)

// MetricsNamespace prefixes every exported Prometheus series
const MetricsNamespace = "blog_admin"

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Persistence
	Store     repositories.Store
	Repos     *repositories.Repositories
	TxManager repositories.TransactionManager

	// Identity and throttling
	Verifier *firebase.Verifier
	Limiter  ratelimit.Limiter

	// Services
	Principals *services.PrincipalService
	Sessions   *services.SessionService
	Moderation *services.ModerationService

	// Middleware
	AuthMiddleware      *middleware.AuthMiddleware
	SessionMiddleware   *middleware.SessionMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware

	// Handlers
	AuthHandler      *auth.Handler
	PrincipalHandler *handlers.PrincipalHandler
	AdminHandler     *handlers.AdminHandler
	HealthHandler    *handlers.HealthHandler
}

// NewDependencies opens the configured store and rate limiter and wires
// everything on top of them.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	limiter, err := openLimiter(ctx, cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
	}

	verifier := firebase.NewVerifier(firebase.Config{
		ProjectID:   cfg.Firebase.ProjectID,
		JWKSURL:     cfg.Firebase.JWKSURL,
		CacheTTL:    cfg.Firebase.CacheTTL,
		HTTPTimeout: cfg.Firebase.HTTPTimeout,
	})

	deps := Wire(cfg, logger, store, verifier, limiter)
	logger.Info("all dependencies initialized successfully",
		zap.String("store", cfg.Store.Driver),
		zap.Bool("rate_limit", cfg.RateLimit.RedisURL != ""))
	return deps, nil
}

// Wire builds services, middleware and handlers over already opened infrastructure
func Wire(cfg *config.Config, logger *zap.Logger, store repositories.Store, verifier *firebase.Verifier, limiter ratelimit.Limiter) *Dependencies {
	metrics := observability.NewMetrics(MetricsNamespace)
	repos := store.NewRepositories()
	txMgr := store.GetTransactionManager()

	principals := services.NewPrincipalService(repos.Accounts, metrics, logger)
	sessions := services.NewSessionService(principals, logger)
	moderation := services.NewModerationService(repos, txMgr, metrics, logger)

	trusted, err := cfg.RateLimit.TrustedPrefixes()
	if err != nil {
		logger.Warn("ignoring trusted proxies", zap.Error(err))
		trusted = nil
	}

	return &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics,
		Store:     store,
		Repos:     repos,
		TxManager: txMgr,
		Verifier:  verifier,
		Limiter:   limiter,

		Principals: principals,
		Sessions:   sessions,
		Moderation: moderation,

		AuthMiddleware:      middleware.NewAuthMiddleware(verifier, metrics, logger),
		SessionMiddleware:   middleware.NewSessionMiddleware(sessions, logger),
		RateLimitMiddleware: middleware.NewRateLimitMiddleware(limiter, trusted, metrics, logger),

		AuthHandler:      auth.NewHandler(cfg.Session, verifier, sessions, logger),
		PrincipalHandler: handlers.NewPrincipalHandler(principals, logger),
		AdminHandler:     handlers.NewAdminHandler(moderation, logger),
		HealthHandler: handlers.NewHealthHandler(logger,
			handlers.ReadinessCheck{Name: "store", Check: store.HealthCheck},
			handlers.ReadinessCheck{Name: "identity_provider", Check: verifier.Ready},
		),
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMongo:
		store, err := mongostore.NewStore(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("mongo store connected", zap.String("connection", cfg.Mongo.LogString()))
		return store, nil
	case config.StoreDriverPostgres:
		factory, err := postgres.NewRepositoryFactory(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("database connection established", zap.String("connection", cfg.Database.LogString()))
		return factory, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openLimiter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ratelimit.Limiter, error) {
	if cfg.RateLimit.RedisURL == "" {
		logger.Warn("REDIS_URL not set, public lookups are not rate limited")
		return ratelimit.NoopLimiter{}, nil
	}

	client, err := ratelimit.NewClientFromURL(ctx, cfg.RateLimit.RedisURL)
	if err != nil {
		return nil, err
	}
	return ratelimit.NewRedisLimiter(client, ratelimit.Options{
		Prefix:   "blog-admin:public",
		Limit:    cfg.RateLimit.PublicPerMinute,
		FailOpen: cfg.RateLimit.FailOpen,
	}, logger), nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close store: %w", err))
		} else {
			d.Logger.Info("store connection closed")
		}
	}

	if closer, ok := d.Limiter.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close rate limiter: %w", err))
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
