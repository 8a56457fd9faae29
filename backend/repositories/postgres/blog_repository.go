package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/blog-admin/backend/models"
	"github.com/upb/blog-admin/backend/repositories"
	"go.uber.org/zap"
)

// BlogRepository implements the repositories.BlogRepository interface
type BlogRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewBlogRepository creates a new blog repository
func NewBlogRepository(db *DB, logger *zap.Logger) repositories.BlogRepository {
	return &BlogRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new blog
func (r *BlogRepository) Create(ctx context.Context, blog *models.Blog) error {
	query := `
		INSERT INTO blogs (id, title, category, views, author_id, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		blog.ID,
		blog.Title,
		blog.Category,
		blog.Views,
		blog.AuthorID,
		blog.Verified,
		blog.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create blog: %w", err)
	}

	r.logger.Debug("blog created", zap.String("id", blog.ID.String()))
	return nil
}

// ListWithAuthors left-joins each blog to its author. Blogs whose author no
// longer exists are still returned, with a nil Author.
func (r *BlogRepository) ListWithAuthors(ctx context.Context) ([]*models.BlogWithAuthor, error) {
	query := `
		SELECT b.id, b.title, b.category, b.views, b.author_id, COALESCE(b.verified, false), b.created_at,
		       a.id, a.email, a.name
		FROM blogs b
		LEFT JOIN accounts a ON a.id = b.author_id
		ORDER BY b.created_at DESC, b.id DESC
	`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list blogs: %w", err)
	}
	defer rows.Close()

	blogs := make([]*models.BlogWithAuthor, 0)
	for rows.Next() {
		var (
			blog        models.Blog
			authorID    uuid.NullUUID
			accountID   uuid.NullUUID
			authorEmail sql.NullString
			authorName  sql.NullString
		)
		if err := rows.Scan(
			&blog.ID,
			&blog.Title,
			&blog.Category,
			&blog.Views,
			&authorID,
			&blog.Verified,
			&blog.CreatedAt,
			&accountID,
			&authorEmail,
			&authorName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan blog: %w", err)
		}

		if authorID.Valid {
			blog.AuthorID = &authorID.UUID
		}

		var author *models.AuthorSummary
		if accountID.Valid {
			author = &models.AuthorSummary{
				ID:    accountID.UUID,
				Email: authorEmail.String,
				Name:  authorName.String,
			}
		}
		blogs = append(blogs, models.NewBlogWithAuthor(blog, author))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blogs: %w", err)
	}

	return blogs, nil
}

// ToggleVerified flips the verified flag in a single statement. NULL counts as false.
func (r *BlogRepository) ToggleVerified(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE blogs
		SET verified = NOT COALESCE(verified, false)
		WHERE id = $1
		RETURNING verified
	`

	var verified bool
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&verified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("blog %s: %w", id, repositories.ErrNotFound)
		}
		return false, fmt.Errorf("failed to toggle blog verification: %w", err)
	}

	r.logger.Debug("blog verification toggled", zap.String("id", id.String()), zap.Bool("verified", verified))
	return verified, nil
}

// Delete deletes a blog
func (r *BlogRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM blogs WHERE id = $1`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete blog: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("blog %s: %w", id, repositories.ErrNotFound)
	}

	r.logger.Debug("blog deleted", zap.String("id", id.String()))
	return nil
}
