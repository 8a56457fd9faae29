package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/blog-admin/backend/internal/observability"
	"github.com/upb/blog-admin/backend/models"
	"github.com/upb/blog-admin/backend/repositories"
	"go.uber.org/zap"
)

const (
	DefaultEventLimit = 50
	MaxEventLimit     = 500
)

// Actor identifies the admin performing a moderation operation
type Actor struct {
	Email     string
	RequestID string
}

// ModerationService implements the admin moderation operations.
// Callers are expected to have passed the access gate already.
type ModerationService struct {
	repos   *repositories.Repositories
	txMgr   repositories.TransactionManager
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewModerationService creates a new ModerationService
func NewModerationService(repos *repositories.Repositories, txMgr repositories.TransactionManager, metrics *observability.Metrics, logger *zap.Logger) *ModerationService {
	return &ModerationService{
		repos:   repos,
		txMgr:   txMgr,
		metrics: metrics,
		logger:  logger,
	}
}

// ToggleAccountBlock inverts the blocked flag of the account and returns the new value
func (s *ModerationService) ToggleAccountBlock(ctx context.Context, actor Actor, id string) (bool, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return false, ErrAccountNotFound
	}

	var blocked bool
	err = WithTransaction(ctx, s.txMgr, func(ctx context.Context) error {
		var err error
		if blocked, err = s.repos.Accounts.ToggleBlocked(ctx, accountID); err != nil {
			return err
		}
		return s.record(ctx, models.NewModerationEvent(actor.Email, models.ActionAccountBlockToggled, models.TargetAccount, accountID).
			WithState(blocked).
			WithRequest(actor.RequestID))
	})
	if err := s.settle(models.ActionAccountBlockToggled, err, ErrAccountNotFound); err != nil {
		return false, err
	}

	s.logger.Info("account block toggled",
		zap.String("actor", actor.Email),
		zap.String("account_id", accountID.String()),
		zap.Bool("blocked", blocked))
	return blocked, nil
}

// ToggleBlogVerification inverts the verified flag of the blog and returns the new value
func (s *ModerationService) ToggleBlogVerification(ctx context.Context, actor Actor, id string) (bool, error) {
	blogID, err := uuid.Parse(id)
	if err != nil {
		return false, ErrBlogNotFound
	}

	var verified bool
	err = WithTransaction(ctx, s.txMgr, func(ctx context.Context) error {
		var err error
		if verified, err = s.repos.Blogs.ToggleVerified(ctx, blogID); err != nil {
			return err
		}
		return s.record(ctx, models.NewModerationEvent(actor.Email, models.ActionBlogVerificationToggled, models.TargetBlog, blogID).
			WithState(verified).
			WithRequest(actor.RequestID))
	})
	if err := s.settle(models.ActionBlogVerificationToggled, err, ErrBlogNotFound); err != nil {
		return false, err
	}

	s.logger.Info("blog verification toggled",
		zap.String("actor", actor.Email),
		zap.String("blog_id", blogID.String()),
		zap.Bool("verified", verified))
	return verified, nil
}

// DeleteBlog removes the blog. Deleting an absent blog is NotFound, not success.
func (s *ModerationService) DeleteBlog(ctx context.Context, actor Actor, id string) error {
	blogID, err := uuid.Parse(id)
	if err != nil {
		return ErrBlogNotFound
	}

	err = WithTransaction(ctx, s.txMgr, func(ctx context.Context) error {
		if err := s.repos.Blogs.Delete(ctx, blogID); err != nil {
			return err
		}
		return s.record(ctx, models.NewModerationEvent(actor.Email, models.ActionBlogDeleted, models.TargetBlog, blogID).
			WithRequest(actor.RequestID))
	})
	if err := s.settle(models.ActionBlogDeleted, err, ErrBlogNotFound); err != nil {
		return err
	}

	s.logger.Info("blog deleted",
		zap.String("actor", actor.Email),
		zap.String("blog_id", blogID.String()))
	return nil
}

// ListAccounts returns every account, newest first
func (s *ModerationService) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	accounts, err := s.repos.Accounts.List(ctx)
	if err != nil {
		s.logger.Error("failed to list accounts", zap.Error(err))
		return nil, wrapStore("failed to list accounts", err)
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}
	return accounts, nil
}

// AccountStats summarizes the account listing
func (s *ModerationService) AccountStats(ctx context.Context) (*models.AccountStats, error) {
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	stats := models.ComputeStats(accounts)
	return &stats, nil
}

// ListBlogs returns every blog with its author resolved where possible
func (s *ModerationService) ListBlogs(ctx context.Context) ([]*models.BlogWithAuthor, error) {
	blogs, err := s.repos.Blogs.ListWithAuthors(ctx)
	if err != nil {
		s.logger.Error("failed to list blogs", zap.Error(err))
		return nil, wrapStore("failed to list blogs", err)
	}
	if blogs == nil {
		blogs = []*models.BlogWithAuthor{}
	}
	return blogs, nil
}

// ListEvents returns recent moderation events. limit is clamped to (0, MaxEventLimit].
func (s *ModerationService) ListEvents(ctx context.Context, limit int) ([]*models.ModerationEvent, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	if limit > MaxEventLimit {
		limit = MaxEventLimit
	}

	events, err := s.repos.ModerationEvents.List(ctx, limit)
	if err != nil {
		s.logger.Error("failed to list moderation events", zap.Error(err))
		return nil, wrapStore("failed to list moderation events", err)
	}
	if events == nil {
		events = []*models.ModerationEvent{}
	}
	return events, nil
}

var errEventNotRecorded = errors.New("moderation event not recorded")

func (s *ModerationService) record(ctx context.Context, event *models.ModerationEvent) error {
	if err := s.repos.ModerationEvents.Insert(ctx, event); err != nil {
		return fmt.Errorf("%w: %w", errEventNotRecorded, err)
	}
	return nil
}

// settle maps the outcome of a moderation unit of work to the caller's error.
// On a store that cannot roll back, a failed event insert leaves the
// mutation applied, so the action reports success.
func (s *ModerationService) settle(action models.ModerationAction, err error, notFound error) error {
	switch {
	case err == nil:
		s.metrics.RecordModeration(string(action), "ok")
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		s.metrics.RecordModeration(string(action), "not_found")
		return notFound
	case errors.Is(err, errEventNotRecorded) && !s.canRollback():
		s.metrics.RecordModeration(string(action), "event_not_recorded")
		s.logger.Error("moderation applied without audit event",
			zap.String("action", string(action)),
			zap.Error(err))
		return nil
	}

	s.metrics.RecordModeration(string(action), "error")
	s.logger.Error("moderation operation failed",
		zap.String("action", string(action)),
		zap.Error(err))
	return wrapStore("moderation operation failed", err)
}

func (s *ModerationService) canRollback() bool {
	if r, ok := s.txMgr.(repositories.RollbackReporter); ok {
		return r.SupportsRollback()
	}
	return true
}
