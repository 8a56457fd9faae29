package mongostore

import (
	"context"
	"fmt"

	"github.com/upb/blog-admin/backend/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ModerationEventRepository implements repositories.ModerationEventRepository
type ModerationEventRepository struct {
	col *mongo.Collection
}

func (r *ModerationEventRepository) Insert(ctx context.Context, event *models.ModerationEvent) error {
	if err := insertOne(ctx, r.col, newModerationEventDoc(event)); err != nil {
		return fmt.Errorf("insert moderation event: %w", err)
	}
	return nil
}

func (r *ModerationEventRepository) List(ctx context.Context, limit int) ([]*models.ModerationEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	docs, err := findMany[moderationEventDoc](ctx, r.col, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list moderation events: %w", err)
	}

	events := make([]*models.ModerationEvent, 0, len(docs))
	for _, d := range docs {
		e, err := d.model()
		if err != nil {
			return nil, fmt.Errorf("decode moderation event %s: %w", d.ID, err)
		}
		events = append(events, e)
	}
	return events, nil
}
