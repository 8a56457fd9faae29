package mongostore

import (
	"time"

	"github.com/google/uuid"
	"github.com/upb/blog-admin/backend/models"
)

type accountDoc struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	Name      string    `bson:"name"`
	PhotoURL  string    `bson:"photo_url"`
	Role      string    `bson:"role"`
	Blocked   bool      `bson:"blocked"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func newAccountDoc(a *models.Account) accountDoc {
	return accountDoc{
		ID:        a.ID.String(),
		Email:     a.Email,
		Name:      a.Name,
		PhotoURL:  a.PhotoURL,
		Role:      string(a.Role),
		Blocked:   a.Blocked,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func (d accountDoc) model() (*models.Account, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	return &models.Account{
		ID:        id,
		Email:     d.Email,
		Name:      d.Name,
		PhotoURL:  d.PhotoURL,
		Role:      models.AccountRole(d.Role),
		Blocked:   d.Blocked,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

// blogDoc tolerates documents written without verified or author_id.
type blogDoc struct {
	ID        string    `bson:"_id"`
	Title     string    `bson:"title"`
	Category  string    `bson:"category"`
	Views     int64     `bson:"views"`
	AuthorID  string    `bson:"author_id,omitempty"`
	Verified  bool      `bson:"verified"`
	CreatedAt time.Time `bson:"created_at"`
}

func newBlogDoc(b *models.Blog) blogDoc {
	doc := blogDoc{
		ID:        b.ID.String(),
		Title:     b.Title,
		Category:  b.Category,
		Views:     b.Views,
		Verified:  b.Verified,
		CreatedAt: b.CreatedAt,
	}
	if b.AuthorID != nil {
		doc.AuthorID = b.AuthorID.String()
	}
	return doc
}

func (d blogDoc) model() (*models.Blog, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	blog := &models.Blog{
		ID:        id,
		Title:     d.Title,
		Category:  d.Category,
		Views:     d.Views,
		Verified:  d.Verified,
		CreatedAt: d.CreatedAt,
	}
	if authorID, err := uuid.Parse(d.AuthorID); err == nil {
		blog.AuthorID = &authorID
	}
	return blog, nil
}

// lookupAuthorsDoc holds the array produced by the $lookup in ListWithAuthors.
type lookupAuthorsDoc struct {
	Authors []accountDoc `bson:"authors"`
}

type moderationEventDoc struct {
	ID         string    `bson:"_id"`
	ActorEmail string    `bson:"actor_email"`
	Action     string    `bson:"action"`
	TargetType string    `bson:"target_type"`
	TargetID   string    `bson:"target_id"`
	NewState   *bool     `bson:"new_state,omitempty"`
	RequestID  string    `bson:"request_id,omitempty"`
	CreatedAt  time.Time `bson:"created_at"`
}

func newModerationEventDoc(e *models.ModerationEvent) moderationEventDoc {
	return moderationEventDoc{
		ID:         e.ID.String(),
		ActorEmail: e.ActorEmail,
		Action:     string(e.Action),
		TargetType: e.TargetType,
		TargetID:   e.TargetID.String(),
		NewState:   e.NewState,
		RequestID:  e.RequestID,
		CreatedAt:  e.CreatedAt,
	}
}

func (d moderationEventDoc) model() (*models.ModerationEvent, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	target, err := uuid.Parse(d.TargetID)
	if err != nil {
		return nil, err
	}
	return &models.ModerationEvent{
		ID:         id,
		ActorEmail: d.ActorEmail,
		Action:     models.ModerationAction(d.Action),
		TargetType: d.TargetType,
		TargetID:   target,
		NewState:   d.NewState,
		RequestID:  d.RequestID,
		CreatedAt:  d.CreatedAt,
	}, nil
}
