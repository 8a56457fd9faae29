package services

import (
	"context"

	"github.com/upb/blog-admin/backend/firebase"
	"github.com/upb/blog-admin/backend/models"
	"go.uber.org/zap"
)

// SessionService enforces account suspension at session establishment
// and before admin operations.
type SessionService struct {
	principals *PrincipalService
	logger     *zap.Logger
}

// NewSessionService creates a new SessionService
func NewSessionService(principals *PrincipalService, logger *zap.Logger) *SessionService {
	return &SessionService{
		principals: principals,
		logger:     logger,
	}
}

// CheckSuspension denies blocked accounts. Admins are not exempt.
func (s *SessionService) CheckSuspension(account *models.Account) error {
	if account != nil && account.Blocked {
		return NewDomainError(ErrorTypeSuspended, ErrAccountSuspended.Message, nil).
			WithDetail("session", "terminate")
	}
	return nil
}

// Establish registers or syncs the caller and refuses the session when the
// account is blocked. The account is still returned alongside a suspension
// error so callers can log who was turned away.
func (s *SessionService) Establish(ctx context.Context, claim *firebase.VerifiedClaim, hints models.ProfileHints) (*models.Account, error) {
	account, err := s.principals.RegisterOrSync(ctx, claim, hints)
	if err != nil {
		return nil, err
	}

	if err := s.CheckSuspension(account); err != nil {
		s.logger.Warn("suspended account denied session",
			zap.String("account_id", account.ID.String()),
			zap.String("email", account.Email))
		return account, err
	}

	return account, nil
}

// RequireActive re-reads the caller's account and fails when it is blocked,
// or when it was never registered.
func (s *SessionService) RequireActive(ctx context.Context, claim *firebase.VerifiedClaim) (*models.Account, error) {
	account, err := s.principals.Current(ctx, claim)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, ErrSessionNotActive
		}
		return nil, err
	}

	if err := s.CheckSuspension(account); err != nil {
		s.logger.Warn("suspended account denied operation",
			zap.String("account_id", account.ID.String()),
			zap.String("email", account.Email))
		return nil, err
	}
	return account, nil
}
