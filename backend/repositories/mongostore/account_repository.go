package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/upb/blog-admin/backend/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// AccountRepository implements repositories.AccountRepository
type AccountRepository struct {
	col    *mongo.Collection
	logger *zap.Logger
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if err := insertOne(ctx, r.col, newAccountDoc(account)); err != nil {
		return fmt.Errorf("account %s: %w", account.Email, err)
	}
	r.logger.Debug("account created", zap.String("id", account.ID.String()), zap.String("email", account.Email))
	return nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.D) (*models.Account, error) {
	doc, err := findOne[accountDoc](ctx, r.col, filter)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return doc.model()
}

// List returns accounts sorted by created_at descending
func (r *AccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	docs, err := findMany[accountDoc](ctx, r.col, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	accounts := make([]*models.Account, 0, len(docs))
	for _, d := range docs {
		a, err := d.model()
		if err != nil {
			return nil, fmt.Errorf("decode account %s: %w", d.ID, err)
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (r *AccountRepository) UpdateProfile(ctx context.Context, account *models.Account) error {
	err := updateFields(ctx, r.col, account.ID.String(), bson.D{
		{Key: "name", Value: account.Name},
		{Key: "photo_url", Value: account.PhotoURL},
		{Key: "updated_at", Value: account.UpdatedAt},
	})
	if err != nil {
		return fmt.Errorf("account %s: %w", account.ID, err)
	}
	return nil
}

// ToggleBlocked inverts blocked with a single findAndModify
func (r *AccountRepository) ToggleBlocked(ctx context.Context, id uuid.UUID) (bool, error) {
	blocked, err := toggleField(ctx, r.col, id.String(), "blocked",
		bson.D{{Key: "updated_at", Value: time.Now().UTC()}})
	if err != nil {
		return false, fmt.Errorf("account %s: %w", id, err)
	}
	r.logger.Debug("account block toggled", zap.String("id", id.String()), zap.Bool("blocked", blocked))
	return blocked, nil
}
