package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/blog-admin/backend/models"
	"github.com/upb/blog-admin/backend/repositories"
	"go.uber.org/zap"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return Wrap(sqlDB, zap.NewNop()), mock
}

var accountCols = []string{"id", "email", "name", "photo_url", "role", "blocked", "created_at", "updated_at"}

func TestAccountRepository_Create(t *testing.T) {
	t.Run("inserts account", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db, zap.NewNop())
		acc := models.NewAccount("new@example.com", models.ProfileHints{Name: "New"})

		mock.ExpectExec("INSERT INTO accounts").
			WithArgs(acc.ID, "new@example.com", "New", "", models.RoleUser, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, repo.Create(context.Background(), acc))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to ErrDuplicate", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db, zap.NewNop())
		acc := models.NewAccount("dup@example.com", models.ProfileHints{})

		mock.ExpectExec("INSERT INTO accounts").
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

		err := repo.Create(context.Background(), acc)
		assert.ErrorIs(t, err, repositories.ErrDuplicate)
	})

	t.Run("other errors are wrapped", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db, zap.NewNop())

		mock.ExpectExec("INSERT INTO accounts").WillReturnError(errors.New("connection reset"))

		err := repo.Create(context.Background(), models.NewAccount("x@example.com", models.ProfileHints{}))
		require.Error(t, err)
		assert.NotErrorIs(t, err, repositories.ErrDuplicate)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestAccountRepository_GetByEmail(t *testing.T) {
	now := time.Now().UTC()
	id := uuid.New()

	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db, zap.NewNop())

		mock.ExpectQuery("SELECT (.+) FROM accounts WHERE email = \\$1").
			WithArgs("ana@example.com").
			WillReturnRows(sqlmock.NewRows(accountCols).
				AddRow(id.String(), "ana@example.com", "Ana", "p.png", "admin", true, now, now))

		acc, err := repo.GetByEmail(context.Background(), "ana@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, acc.ID)
		assert.Equal(t, models.RoleAdmin, acc.Role)
		assert.True(t, acc.Blocked)
		assert.Equal(t, "p.png", acc.PhotoURL)
	})

	t.Run("missing", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db, zap.NewNop())

		mock.ExpectQuery("SELECT (.+) FROM accounts WHERE email = \\$1").
			WithArgs("ghost@example.com").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByEmail(context.Background(), "ghost@example.com")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestAccountRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db, zap.NewNop())
	newer, older := time.Now().UTC(), time.Now().UTC().Add(-time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM accounts ORDER BY created_at DESC").
		WillReturnRows(sqlmock.NewRows(accountCols).
			AddRow(uuid.New().String(), "b@example.com", "B", "", "user", false, newer, newer).
			AddRow(uuid.New().String(), "a@example.com", "A", "", "user", true, older, older))

	accounts, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "b@example.com", accounts[0].Email)
	assert.True(t, accounts[1].Blocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_List_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db, zap.NewNop())

	mock.ExpectQuery("SELECT (.+) FROM accounts").WillReturnRows(sqlmock.NewRows(accountCols))

	accounts, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, accounts)
	assert.Empty(t, accounts)
}

func TestAccountRepository_UpdateProfile(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db, zap.NewNop())
	acc := models.NewAccount("a@example.com", models.ProfileHints{Name: "A"})

	mock.ExpectExec("UPDATE accounts").
		WithArgs(acc.ID, "A", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateProfile(context.Background(), acc))

	mock.ExpectExec("UPDATE accounts").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdateProfile(context.Background(), acc), repositories.ErrNotFound)
}

func TestAccountRepository_ToggleBlocked(t *testing.T) {
	id := uuid.New()

	t.Run("returns new state", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db, zap.NewNop())

		mock.ExpectQuery("UPDATE accounts\\s+SET blocked = NOT blocked").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"blocked"}).AddRow(true))

		blocked, err := repo.ToggleBlocked(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, blocked)
	})

	t.Run("toggling twice restores the original state", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db, zap.NewNop())

		mock.ExpectQuery("UPDATE accounts\\s+SET blocked = NOT blocked").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"blocked"}).AddRow(true))
		mock.ExpectQuery("UPDATE accounts\\s+SET blocked = NOT blocked").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"blocked"}).AddRow(false))

		first, err := repo.ToggleBlocked(context.Background(), id)
		require.NoError(t, err)
		second, err := repo.ToggleBlocked(context.Background(), id)
		require.NoError(t, err)

		assert.True(t, first)
		assert.False(t, second)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown id", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db, zap.NewNop())

		mock.ExpectQuery("UPDATE accounts").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"blocked"}))

		_, err := repo.ToggleBlocked(context.Background(), id)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestBlogRepository_ListWithAuthors(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBlogRepository(db, zap.NewNop())

	now := time.Now().UTC()
	authorID := uuid.New()
	orphanAuthor := uuid.New()

	cols := []string{"id", "title", "category", "views", "author_id", "verified", "created_at", "a_id", "email", "name"}
	mock.ExpectQuery("SELECT (.+) FROM blogs b\\s+LEFT JOIN accounts a").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(uuid.New().String(), "With author", "tech", int64(12), authorID.String(), true, now, authorID.String(), "w@example.com", "Writer").
			AddRow(uuid.New().String(), "Orphan", "life", int64(0), orphanAuthor.String(), false, now, nil, nil, nil).
			AddRow(uuid.New().String(), "No author", "misc", int64(3), nil, false, now, nil, nil, nil))

	blogs, err := repo.ListWithAuthors(context.Background())
	require.NoError(t, err)
	require.Len(t, blogs, 3)

	assert.Equal(t, "Writer", blogs[0].AuthorName)
	require.NotNil(t, blogs[0].Author)
	assert.Equal(t, authorID, blogs[0].Author.ID)
	assert.True(t, blogs[0].Verified)
	assert.Equal(t, int64(12), blogs[0].Views)

	assert.Nil(t, blogs[1].Author)
	assert.Equal(t, models.UnknownAuthor, blogs[1].AuthorName)
	require.NotNil(t, blogs[1].AuthorID)
	assert.Equal(t, orphanAuthor, *blogs[1].AuthorID)

	assert.Nil(t, blogs[2].AuthorID)
	assert.Equal(t, models.UnknownAuthor, blogs[2].AuthorName)
}

func TestBlogRepository_ToggleVerified(t *testing.T) {
	id := uuid.New()

	t.Run("treats null as false", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBlogRepository(db, zap.NewNop())

		mock.ExpectQuery("SET verified = NOT COALESCE\\(verified, false\\)").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"verified"}).AddRow(true))

		verified, err := repo.ToggleVerified(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, verified)
	})

	t.Run("unknown id", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBlogRepository(db, zap.NewNop())

		mock.ExpectQuery("UPDATE blogs").WithArgs(id).WillReturnError(sql.ErrNoRows)

		_, err := repo.ToggleVerified(context.Background(), id)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestBlogRepository_Delete(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"deleted", 1, nil},
		{"nothing deleted", 0, repositories.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewBlogRepository(db, zap.NewNop())

			mock.ExpectExec("DELETE FROM blogs WHERE id = \\$1").
				WithArgs(id).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.Delete(context.Background(), id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestModerationEventRepository(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewModerationEventRepository(db, zap.NewNop())
	target := uuid.New()
	event := models.NewModerationEvent("admin@example.com", models.ActionBlogDeleted, models.TargetBlog, target)

	mock.ExpectExec("INSERT INTO moderation_events").
		WithArgs(event.ID, "admin@example.com", models.ActionBlogDeleted, models.TargetBlog, target, nil, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Insert(context.Background(), event))

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM moderation_events").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "actor_email", "action", "target_type", "target_id", "new_state", "request_id", "created_at"}).
			AddRow(uuid.New().String(), "admin@example.com", "account_block_toggled", "account", target.String(), true, "req-1", now).
			AddRow(event.ID.String(), "admin@example.com", "blog_deleted", "blog", target.String(), nil, "", now))

	events, err := repo.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.NotNil(t, events[0].NewState)
	assert.True(t, *events[0].NewState)
	assert.Nil(t, events[1].NewState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_InTransaction(t *testing.T) {
	t.Run("commits and routes statements through the transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		repo := NewBlogRepository(db, zap.NewNop())
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM blogs").WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := tm.InTransaction(context.Background(), func(ctx context.Context, _ repositories.Transaction) error {
			return repo.Delete(ctx, id)
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := tm.InTransaction(context.Background(), func(ctx context.Context, _ repositories.Transaction) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested call joins the outer transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		repo := NewBlogRepository(db, zap.NewNop())
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM blogs").WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := tm.InTransaction(context.Background(), func(ctx context.Context, outer repositories.Transaction) error {
			return tm.InTransaction(ctx, func(ctx context.Context, inner repositories.Transaction) error {
				assert.Same(t, outer, inner)
				return repo.Delete(ctx, id)
			})
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("panic rolls back and propagates", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.PanicsWithValue(t, "boom", func() {
			_ = tm.InTransaction(context.Background(), func(ctx context.Context, _ repositories.Transaction) error {
				panic("boom")
			})
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())

		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		err := tm.InTransaction(context.Background(), func(ctx context.Context, _ repositories.Transaction) error {
			t.Fatal("fn must not run")
			return nil
		})
		assert.ErrorContains(t, err, "failed to begin transaction")
	})
}

func TestDB_HealthCheck(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()
	db := Wrap(sqlDB, zap.NewNop())

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
