package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/upb/blog-admin/backend/firebase"
	"github.com/upb/blog-admin/backend/models"
	"github.com/upb/blog-admin/backend/services"
)

type MockPrincipalService struct {
	mock.Mock
}

func (m *MockPrincipalService) RegisterOrSync(ctx context.Context, claim *firebase.VerifiedClaim, hints models.ProfileHints) (*models.Account, error) {
	args := m.Called(ctx, claim, hints)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockPrincipalService) Current(ctx context.Context, claim *firebase.VerifiedClaim) (*models.Account, error) {
	args := m.Called(ctx, claim)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockPrincipalService) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockPrincipalService) BlockedStatus(ctx context.Context, email string) (*services.BlockedStatus, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.BlockedStatus), args.Error(1)
}

type MockModerationService struct {
	mock.Mock
}

func (m *MockModerationService) ToggleAccountBlock(ctx context.Context, actor services.Actor, id string) (bool, error) {
	args := m.Called(ctx, actor, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockModerationService) ToggleBlogVerification(ctx context.Context, actor services.Actor, id string) (bool, error) {
	args := m.Called(ctx, actor, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockModerationService) DeleteBlog(ctx context.Context, actor services.Actor, id string) error {
	args := m.Called(ctx, actor, id)
	return args.Error(0)
}

func (m *MockModerationService) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Account), args.Error(1)
}

func (m *MockModerationService) AccountStats(ctx context.Context) (*models.AccountStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccountStats), args.Error(1)
}

func (m *MockModerationService) ListBlogs(ctx context.Context) ([]*models.BlogWithAuthor, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BlogWithAuthor), args.Error(1)
}

func (m *MockModerationService) ListEvents(ctx context.Context, limit int) ([]*models.ModerationEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ModerationEvent), args.Error(1)
}
