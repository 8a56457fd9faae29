package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/upb/blog-admin/backend/models"
	"github.com/upb/blog-admin/backend/repositories"
	"go.uber.org/zap"
)

// ModerationEventRepository implements the repositories.ModerationEventRepository interface
type ModerationEventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewModerationEventRepository creates a new moderation event repository
func NewModerationEventRepository(db *DB, logger *zap.Logger) repositories.ModerationEventRepository {
	return &ModerationEventRepository{
		db:     db,
		logger: logger,
	}
}

// Insert records a moderation event. Runs in the caller's transaction when present.
func (r *ModerationEventRepository) Insert(ctx context.Context, event *models.ModerationEvent) error {
	query := `
		INSERT INTO moderation_events (id, actor_email, action, target_type, target_id, new_state, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		event.ID,
		event.ActorEmail,
		event.Action,
		event.TargetType,
		event.TargetID,
		event.NewState,
		event.RequestID,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert moderation event: %w", err)
	}

	r.logger.Debug("moderation event inserted",
		zap.String("id", event.ID.String()),
		zap.String("action", string(event.Action)))
	return nil
}

// List retrieves the most recent events
func (r *ModerationEventRepository) List(ctx context.Context, limit int) ([]*models.ModerationEvent, error) {
	query := `
		SELECT id, actor_email, action, target_type, target_id, new_state, request_id, created_at
		FROM moderation_events
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list moderation events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.ModerationEvent, 0)
	for rows.Next() {
		var (
			event    models.ModerationEvent
			newState sql.NullBool
		)
		if err := rows.Scan(
			&event.ID,
			&event.ActorEmail,
			&event.Action,
			&event.TargetType,
			&event.TargetID,
			&newState,
			&event.RequestID,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan moderation event: %w", err)
		}
		if newState.Valid {
			state := newState.Bool
			event.NewState = &state
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating moderation events: %w", err)
	}

	return events, nil
}
