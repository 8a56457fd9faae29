package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccountRole is informational only; admin capability comes from the verified token claim.
type AccountRole string

const (
	RoleUser  AccountRole = "user"
	RoleAdmin AccountRole = "admin"
)

// Account represents a registered principal, unique by email
type Account struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	Email     string      `json:"email" db:"email"`
	Name      string      `json:"name" db:"name"`
	PhotoURL  string      `json:"photoUrl" db:"photo_url"`
	Role      AccountRole `json:"role" db:"role"`
	Blocked   bool        `json:"blocked" db:"blocked"`
	CreatedAt time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time   `json:"updatedAt" db:"updated_at"`
}

// TableName returns the table name for the Account model
func (Account) TableName() string {
	return "accounts"
}

// ProfileHints carries provider-sourced profile values. Empty fields are treated as not supplied.
type ProfileHints struct {
	Name     string `json:"name" validate:"omitempty,max=256"`
	PhotoURL string `json:"photoUrl" validate:"omitempty,max=2048"`
}

// NormalizeEmail trims and lower-cases an email so lookups are case-insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewAccount creates a user-role, unblocked Account seeded from the hints
func NewAccount(email string, hints ProfileHints) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:        uuid.New(),
		Email:     NormalizeEmail(email),
		Name:      hints.Name,
		PhotoURL:  hints.PhotoURL,
		Role:      RoleUser,
		Blocked:   false,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ApplyHints copies supplied hints that differ from the stored profile.
// It reports whether anything changed so callers can skip the write.
func (a *Account) ApplyHints(hints ProfileHints) bool {
	changed := false
	if hints.Name != "" && hints.Name != a.Name {
		a.Name = hints.Name
		changed = true
	}
	if hints.PhotoURL != "" && hints.PhotoURL != a.PhotoURL {
		a.PhotoURL = hints.PhotoURL
		changed = true
	}
	if changed {
		a.UpdatedAt = time.Now().UTC()
	}
	return changed
}

// IsAdmin reports the stored role. Do not use it for authorization.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// AccountStats summarizes an account listing for the dashboard
type AccountStats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Blocked int `json:"blocked"`
}

// ComputeStats derives totals from a listing
func ComputeStats(accounts []*Account) AccountStats {
	stats := AccountStats{Total: len(accounts)}
	for _, a := range accounts {
		if a.Blocked {
			stats.Blocked++
		}
	}
	stats.Active = stats.Total - stats.Blocked
	return stats
}
