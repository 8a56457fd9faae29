package mongostore

import (
	"context"

	"github.com/upb/blog-admin/backend/repositories"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
)

// TransactionManager runs units of work in a session transaction when the
// deployment supports them. A standalone server has no multi-document
// transactions; there fn runs directly and nothing is rolled back.
type TransactionManager struct {
	client *mongo.Client
	logger *zap.Logger
}

var (
	_ repositories.TransactionManager = (*TransactionManager)(nil)
	_ repositories.RollbackReporter   = (*TransactionManager)(nil)
)

// NewTransactionManager returns a session-backed manager for a non-nil client
// and a pass-through manager otherwise.
func NewTransactionManager(client *mongo.Client, logger *zap.Logger) *TransactionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionManager{client: client, logger: logger}
}

// SupportsRollback reports whether a failed unit of work leaves no writes behind
func (tm *TransactionManager) SupportsRollback() bool {
	return tm.client != nil
}

// Begin returns a handle whose Commit and Rollback do nothing. Use
// InTransaction for session transactions.
func (tm *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return &Transaction{ctx: ctx}, nil
}

// InTransaction runs fn. Calls made with a context already inside a session
// transaction join it.
func (tm *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	if tm.client == nil || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx, &Transaction{ctx: ctx})
	}

	sess, err := tm.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	_, err = sess.WithTransaction(ctx, func(sessCtx context.Context) (any, error) {
		return nil, fn(sessCtx, &Transaction{ctx: sessCtx})
	})
	if err != nil {
		tm.logger.Debug("mongo transaction aborted", zap.Error(err))
	}
	return err
}

// Transaction is the handle passed to units of work. The session, when
// there is one, travels in its context.
type Transaction struct {
	ctx context.Context
}

func (t *Transaction) Commit() error            { return nil }
func (t *Transaction) Rollback() error          { return nil }
func (t *Transaction) Context() context.Context { return t.ctx }
