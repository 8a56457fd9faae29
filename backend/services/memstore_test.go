package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/upb/blog-admin/backend/models"
	"github.com/upb/blog-admin/backend/repositories"
)

// memStore is a goroutine-safe in-memory store used where tests need real
// state across several service calls.
type memStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
	blogs    map[uuid.UUID]*models.Blog
	events   []*models.ModerationEvent
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[uuid.UUID]*models.Account),
		blogs:    make(map[uuid.UUID]*models.Blog),
	}
}

func (s *memStore) repos() *repositories.Repositories {
	return &repositories.Repositories{
		Accounts:         memAccounts{s},
		Blogs:            memBlogs{s},
		ModerationEvents: memEvents{s},
	}
}

func (s *memStore) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type memAccounts struct{ s *memStore }

func (r memAccounts) Create(_ context.Context, account *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.Email == account.Email {
			return repositories.ErrDuplicate
		}
	}
	copied := *account
	r.s.accounts[account.ID] = &copied
	return nil
}

func (r memAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.Email == email {
			copied := *a
			return &copied, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r memAccounts) List(_ context.Context) ([]*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Account, 0, len(r.s.accounts))
	for _, a := range r.s.accounts {
		copied := *a
		out = append(out, &copied)
	}
	return out, nil
}

func (r memAccounts) UpdateProfile(_ context.Context, account *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[account.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	a.Name, a.PhotoURL, a.UpdatedAt = account.Name, account.PhotoURL, account.UpdatedAt
	return nil
}

func (r memAccounts) ToggleBlocked(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return false, repositories.ErrNotFound
	}
	a.Blocked = !a.Blocked
	return a.Blocked, nil
}

type memBlogs struct{ s *memStore }

func (r memBlogs) Create(_ context.Context, blog *models.Blog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	copied := *blog
	r.s.blogs[blog.ID] = &copied
	return nil
}

func (r memBlogs) ListWithAuthors(_ context.Context) ([]*models.BlogWithAuthor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.BlogWithAuthor, 0, len(r.s.blogs))
	for _, b := range r.s.blogs {
		var author *models.AuthorSummary
		if b.AuthorID != nil {
			if a, ok := r.s.accounts[*b.AuthorID]; ok {
				author = &models.AuthorSummary{ID: a.ID, Email: a.Email, Name: a.Name}
			}
		}
		out = append(out, models.NewBlogWithAuthor(*b, author))
	}
	return out, nil
}

func (r memBlogs) ToggleVerified(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.blogs[id]
	if !ok {
		return false, repositories.ErrNotFound
	}
	b.Verified = !b.Verified
	return b.Verified, nil
}

func (r memBlogs) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.blogs[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.blogs, id)
	return nil
}

type memEvents struct{ s *memStore }

func (r memEvents) Insert(_ context.Context, event *models.ModerationEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.events = append(r.s.events, event)
	return nil
}

func (r memEvents) List(_ context.Context, limit int) ([]*models.ModerationEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.ModerationEvent, 0, limit)
	for i := len(r.s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.s.events[i])
	}
	return out, nil
}
