package mongostore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/blog-admin/backend/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
)

// BlogRepository implements repositories.BlogRepository
type BlogRepository struct {
	col    *mongo.Collection
	logger *zap.Logger
}

func (r *BlogRepository) Create(ctx context.Context, blog *models.Blog) error {
	if err := insertOne(ctx, r.col, newBlogDoc(blog)); err != nil {
		return fmt.Errorf("create blog: %w", err)
	}
	return nil
}

// ListWithAuthors joins accounts through $lookup. A dangling author_id yields
// an empty authors array, which maps to a nil Author.
func (r *BlogRepository) ListWithAuthors(ctx context.Context) ([]*models.BlogWithAuthor, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: ColAccounts},
			{Key: "localField", Value: "author_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "authors"},
		}}},
	}

	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", wrapError(err))
	}
	defer cursor.Close(ctx)

	blogs := make([]*models.BlogWithAuthor, 0)
	for cursor.Next(ctx) {
		var (
			doc    blogDoc
			joined lookupAuthorsDoc
		)
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode blog: %w", err)
		}
		if err := cursor.Decode(&joined); err != nil {
			return nil, fmt.Errorf("decode blog author: %w", err)
		}
		blog, err := doc.model()
		if err != nil {
			return nil, fmt.Errorf("decode blog %s: %w", doc.ID, err)
		}

		var author *models.AuthorSummary
		if len(joined.Authors) > 0 {
			if a, err := joined.Authors[0].model(); err == nil {
				author = &models.AuthorSummary{ID: a.ID, Email: a.Email, Name: a.Name}
			}
		}
		blogs = append(blogs, models.NewBlogWithAuthor(*blog, author))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	return blogs, nil
}

func (r *BlogRepository) ToggleVerified(ctx context.Context, id uuid.UUID) (bool, error) {
	verified, err := toggleField(ctx, r.col, id.String(), "verified", nil)
	if err != nil {
		return false, fmt.Errorf("blog %s: %w", id, err)
	}
	r.logger.Debug("blog verification toggled", zap.String("id", id.String()), zap.Bool("verified", verified))
	return verified, nil
}

func (r *BlogRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := deleteByID(ctx, r.col, id.String()); err != nil {
		return fmt.Errorf("blog %s: %w", id, err)
	}
	return nil
}
