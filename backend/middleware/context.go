package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/blog-admin/backend/firebase"
	"github.com/upb/blog-admin/backend/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// ClaimsKey is the context key for the verified identity claim
	ClaimsKey contextKey = "claims"

	// AccountKey is the context key for the caller's active account
	AccountKey contextKey = "account"
)

// GetRequestIDFromContext retrieves the request ID assigned by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetClaimsFromContext retrieves the verified claim from context
func GetClaimsFromContext(ctx context.Context) *firebase.VerifiedClaim {
	if val := ctx.Value(ClaimsKey); val != nil {
		if claims, ok := val.(*firebase.VerifiedClaim); ok {
			return claims
		}
	}
	return nil
}

// WithClaims adds the verified claim to the context
func WithClaims(ctx context.Context, claims *firebase.VerifiedClaim) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetAccountFromContext retrieves the account loaded by RequireActiveAccount
func GetAccountFromContext(ctx context.Context) *models.Account {
	if val := ctx.Value(AccountKey); val != nil {
		if account, ok := val.(*models.Account); ok {
			return account
		}
	}
	return nil
}

// WithAccount adds the caller's account to the context
func WithAccount(ctx context.Context, account *models.Account) context.Context {
	return context.WithValue(ctx, AccountKey, account)
}
