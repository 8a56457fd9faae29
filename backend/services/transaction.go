package services

import (
	"context"

	"github.com/upb/blog-admin/backend/repositories"
)

// WithTransaction runs fn inside a transaction. Repositories called with the
// context passed to fn join the transaction.
func WithTransaction(ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context) error) error {
	return txMgr.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		return fn(txCtx)
	})
}
