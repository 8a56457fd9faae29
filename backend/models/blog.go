package models

import (
	"time"

	"github.com/google/uuid"
)

// UnknownAuthor is shown when a blog's author cannot be resolved
const UnknownAuthor = "unknown"

// Blog represents a moderated article. AuthorID is a weak reference to an Account.
type Blog struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Title     string     `json:"title" db:"title"`
	Category  string     `json:"category" db:"category"`
	Views     int64      `json:"views" db:"views"`
	AuthorID  *uuid.UUID `json:"authorId,omitempty" db:"author_id"`
	Verified  bool       `json:"verified" db:"verified"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}

// TableName returns the table name for the Blog model
func (Blog) TableName() string {
	return "blogs"
}

// NewBlog creates a new unverified Blog
func NewBlog(title, category string, authorID *uuid.UUID) *Blog {
	return &Blog{
		ID:        uuid.New(),
		Title:     title,
		Category:  category,
		AuthorID:  authorID,
		CreatedAt: time.Now().UTC(),
	}
}

// AuthorSummary is the subset of an Account shown next to a blog
type AuthorSummary struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

// BlogWithAuthor is a Blog with its author resolved. Author is nil when the reference dangles.
type BlogWithAuthor struct {
	Blog
	Author     *AuthorSummary `json:"author"`
	AuthorName string         `json:"authorName"`
}

// NewBlogWithAuthor pairs a blog with its (possibly missing) author
func NewBlogWithAuthor(blog Blog, author *AuthorSummary) *BlogWithAuthor {
	out := &BlogWithAuthor{Blog: blog, Author: author, AuthorName: UnknownAuthor}
	if author != nil {
		switch {
		case author.Name != "":
			out.AuthorName = author.Name
		case author.Email != "":
			out.AuthorName = author.Email
		}
	}
	return out
}
