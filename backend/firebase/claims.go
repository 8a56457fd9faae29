package firebase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const maxUIDLength = 128

var (
	// ErrMissingClaim is returned when a required claim is missing
	ErrMissingClaim = errors.New("missing required claim")
)

// tokenClaims mirrors the payload of a Firebase ID token
type tokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	AuthTime      int64  `json:"auth_time"`

	// Custom claim set through the Admin SDK. Only a JSON true grants the capability.
	Admin interface{} `json:"admin,omitempty"`

	Firebase struct {
		SignInProvider string `json:"sign_in_provider"`
	} `json:"firebase"`
}

// VerifiedClaim is the identity extracted from a verified token.
// It lives for a single request and is never cached.
type VerifiedClaim struct {
	UID            string
	Email          string
	EmailVerified  bool
	Admin          bool
	Name           string
	Picture        string
	SignInProvider string
	AuthTime       time.Time
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

// HasEmail reports whether the credential carried an email
func (c *VerifiedClaim) HasEmail() bool {
	return c != nil && c.Email != ""
}

// parseClaims converts validated token claims into a VerifiedClaim
func parseClaims(tc *tokenClaims, now time.Time, leeway time.Duration) (*VerifiedClaim, error) {
	if tc.Subject == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	if len(tc.Subject) > maxUIDLength {
		return nil, fmt.Errorf("%w: sub exceeds %d characters", ErrInvalidToken, maxUIDLength)
	}
	if tc.IssuedAt == nil {
		return nil, fmt.Errorf("%w: iat", ErrMissingClaim)
	}

	claim := &VerifiedClaim{
		UID:            tc.Subject,
		Email:          strings.ToLower(strings.TrimSpace(tc.Email)),
		EmailVerified:  tc.EmailVerified,
		Admin:          tc.Admin == true,
		Name:           tc.Name,
		Picture:        tc.Picture,
		SignInProvider: tc.Firebase.SignInProvider,
		IssuedAt:       tc.IssuedAt.Time,
	}
	if tc.ExpiresAt != nil {
		claim.ExpiresAt = tc.ExpiresAt.Time
	}
	if tc.AuthTime > 0 {
		claim.AuthTime = time.Unix(tc.AuthTime, 0)
		if claim.AuthTime.After(now.Add(leeway)) {
			return nil, fmt.Errorf("%w: auth_time is in the future", ErrInvalidToken)
		}
	}

	return claim, nil
}
