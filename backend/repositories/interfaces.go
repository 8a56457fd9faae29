package repositories

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/google/uuid"
	"github.com/upb/blog-admin/backend/models"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrUnavailable marks a store failure worth retrying.
	ErrUnavailable = errors.New("store unavailable")
)

// IsUnavailable reports whether err is a timeout or a lost connection
// rather than a rejected operation.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// TransactionManager manages store transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction.
	// Commits if fn succeeds, rolls back on error.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// RollbackReporter is implemented by transaction managers that may be
// unable to undo a failed unit of work. Managers without it roll back.
type RollbackReporter interface {
	SupportsRollback() bool
}

// Transaction represents a store transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Context() context.Context
}

// AccountRepository handles account persistence.
// Emails passed in are expected to be normalized already.
type AccountRepository interface {
	// Create inserts a new account. Returns ErrDuplicate when the email is taken.
	Create(ctx context.Context, account *models.Account) error

	GetByEmail(ctx context.Context, email string) (*models.Account, error)

	// List returns every account, newest first.
	List(ctx context.Context) ([]*models.Account, error)

	// UpdateProfile persists name, photo and updated_at.
	UpdateProfile(ctx context.Context, account *models.Account) error

	// ToggleBlocked atomically inverts the blocked flag and returns the new value.
	ToggleBlocked(ctx context.Context, id uuid.UUID) (bool, error)
}

// BlogRepository handles blog persistence
type BlogRepository interface {
	Create(ctx context.Context, blog *models.Blog) error

	// ListWithAuthors returns all blogs newest first, joined to their author when it still exists.
	ListWithAuthors(ctx context.Context) ([]*models.BlogWithAuthor, error)

	// ToggleVerified atomically inverts the verified flag (absent counts as false)
	// and returns the new value.
	ToggleVerified(ctx context.Context, id uuid.UUID) (bool, error)

	// Delete removes the blog. Returns ErrNotFound when nothing was deleted.
	Delete(ctx context.Context, id uuid.UUID) error
}

// ModerationEventRepository stores the moderation audit trail
type ModerationEventRepository interface {
	Insert(ctx context.Context, event *models.ModerationEvent) error

	// List returns the most recent events, newest first.
	List(ctx context.Context, limit int) ([]*models.ModerationEvent, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Accounts         AccountRepository
	Blogs            BlogRepository
	ModerationEvents ModerationEventRepository
}

// Store is a backing store able to hand out repositories and transactions.
// Both the Postgres and the Mongo implementations satisfy it.
type Store interface {
	NewRepositories() *Repositories
	GetTransactionManager() TransactionManager
	HealthCheck(ctx context.Context) error
	Close() error
}
