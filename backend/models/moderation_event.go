package models

import (
	"time"

	"github.com/google/uuid"
)

// ModerationAction represents the type of moderation action being recorded
type ModerationAction string

const (
	ActionAccountBlockToggled     ModerationAction = "account_block_toggled"
	ActionBlogVerificationToggled ModerationAction = "blog_verification_toggled"
	ActionBlogDeleted             ModerationAction = "blog_deleted"
)

// Target types
const (
	TargetAccount = "account"
	TargetBlog    = "blog"
)

// ModerationEvent is an append-only record of an admin action
type ModerationEvent struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	ActorEmail string           `json:"actorEmail" db:"actor_email"`
	Action     ModerationAction `json:"action" db:"action"`
	TargetType string           `json:"targetType" db:"target_type"`
	TargetID   uuid.UUID        `json:"targetId" db:"target_id"`
	NewState   *bool            `json:"newState,omitempty" db:"new_state"`
	RequestID  string           `json:"requestId,omitempty" db:"request_id"`
	CreatedAt  time.Time        `json:"createdAt" db:"created_at"`
}

// TableName returns the table name for the ModerationEvent model
func (ModerationEvent) TableName() string {
	return "moderation_events"
}

// NewModerationEvent creates a new ModerationEvent
func NewModerationEvent(actorEmail string, action ModerationAction, targetType string, targetID uuid.UUID) *ModerationEvent {
	return &ModerationEvent{
		ID:         uuid.New(),
		ActorEmail: actorEmail,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		CreatedAt:  time.Now().UTC(),
	}
}

// WithState records the flag value after a toggle
func (e *ModerationEvent) WithState(state bool) *ModerationEvent {
	e.NewState = &state
	return e
}

// WithRequest sets the originating request id
func (e *ModerationEvent) WithRequest(requestID string) *ModerationEvent {
	e.RequestID = requestID
	return e
}
