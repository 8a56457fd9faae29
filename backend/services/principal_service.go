package services

import (
	"context"
	"errors"

	"github.com/upb/blog-admin/backend/firebase"
	"github.com/upb/blog-admin/backend/internal/observability"
	"github.com/upb/blog-admin/backend/models"
	"github.com/upb/blog-admin/backend/repositories"
	"go.uber.org/zap"
)

// BlockedStatus is the public answer to "is this email blocked"
type BlockedStatus struct {
	Blocked bool `json:"blocked"`
}

// PrincipalService resolves verified identities to stored accounts
type PrincipalService struct {
	accounts repositories.AccountRepository
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewPrincipalService creates a new PrincipalService
func NewPrincipalService(accounts repositories.AccountRepository, metrics *observability.Metrics, logger *zap.Logger) *PrincipalService {
	return &PrincipalService{
		accounts: accounts,
		metrics:  metrics,
		logger:   logger,
	}
}

// RegisterOrSync returns the account for the claim's email, creating it on
// first sight. Supplied hints that differ from the stored profile are
// written back; nothing is written when they match. Role and blocked state
// are never touched here.
func (s *PrincipalService) RegisterOrSync(ctx context.Context, claim *firebase.VerifiedClaim, hints models.ProfileHints) (*models.Account, error) {
	if !claim.HasEmail() {
		return nil, ErrMissingEmail
	}
	email := models.NormalizeEmail(claim.Email)

	account, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.sync(ctx, account, hints)
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, s.storeError("failed to look up account", err)
	}

	account = models.NewAccount(email, hints)
	err = s.accounts.Create(ctx, account)
	if err == nil {
		s.metrics.RecordPrincipalSync("created")
		s.logger.Info("account registered",
			zap.String("account_id", account.ID.String()),
			zap.String("email", email))
		return account, nil
	}
	if !errors.Is(err, repositories.ErrDuplicate) {
		return nil, s.storeError("failed to create account", err)
	}

	// A concurrent first login won the insert. Continue as an update of the winner.
	s.logger.Debug("concurrent registration folded into sync", zap.String("email", email))
	account, err = s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, s.storeError("failed to re-read account", err)
	}
	return s.sync(ctx, account, hints)
}

func (s *PrincipalService) sync(ctx context.Context, account *models.Account, hints models.ProfileHints) (*models.Account, error) {
	if !account.ApplyHints(hints) {
		s.metrics.RecordPrincipalSync("unchanged")
		return account, nil
	}

	if err := s.accounts.UpdateProfile(ctx, account); err != nil {
		return nil, s.storeError("failed to update account profile", err)
	}

	s.metrics.RecordPrincipalSync("updated")
	s.logger.Debug("account profile synced", zap.String("account_id", account.ID.String()))
	return account, nil
}

// Current returns the stored account behind a verified claim
func (s *PrincipalService) Current(ctx context.Context, claim *firebase.VerifiedClaim) (*models.Account, error) {
	if !claim.HasEmail() {
		return nil, ErrMissingEmail
	}
	return s.GetByEmail(ctx, claim.Email)
}

// GetByEmail looks up an account by email
func (s *PrincipalService) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, ErrMissingEmail
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, s.storeError("failed to get account", err)
	}
	return account, nil
}

// BlockedStatus reports whether the account registered under email is blocked
func (s *PrincipalService) BlockedStatus(ctx context.Context, email string) (*BlockedStatus, error) {
	account, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return &BlockedStatus{Blocked: account.Blocked}, nil
}

func (s *PrincipalService) storeError(msg string, err error) error {
	s.logger.Error(msg, zap.Error(err))
	return wrapStore(msg, err)
}
