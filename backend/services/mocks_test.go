package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/upb/blog-admin/backend/models"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	args := m.Called(ctx, email)
	if a := args.Get(0); a != nil {
		return a.(*models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	args := m.Called(ctx)
	if a := args.Get(0); a != nil {
		return a.([]*models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountRepository) UpdateProfile(ctx context.Context, account *models.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) ToggleBlocked(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// MockBlogRepository is a mock implementation of BlogRepository
type MockBlogRepository struct {
	mock.Mock
}

func (m *MockBlogRepository) Create(ctx context.Context, blog *models.Blog) error {
	args := m.Called(ctx, blog)
	return args.Error(0)
}

func (m *MockBlogRepository) ListWithAuthors(ctx context.Context) ([]*models.BlogWithAuthor, error) {
	args := m.Called(ctx)
	if b := args.Get(0); b != nil {
		return b.([]*models.BlogWithAuthor), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBlogRepository) ToggleVerified(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockBlogRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockModerationEventRepository is a mock implementation of ModerationEventRepository
type MockModerationEventRepository struct {
	mock.Mock
}

func (m *MockModerationEventRepository) Insert(ctx context.Context, event *models.ModerationEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockModerationEventRepository) List(ctx context.Context, limit int) ([]*models.ModerationEvent, error) {
	args := m.Called(ctx, limit)
	if e := args.Get(0); e != nil {
		return e.([]*models.ModerationEvent), args.Error(1)
	}
	return nil, args.Error(1)
}
