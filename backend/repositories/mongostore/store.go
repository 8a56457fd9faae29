// Package mongostore implements the repositories on MongoDB.
//
// Records keep their UUIDs as string _id values. Collection names and
// indexes are managed in ensureIndexes.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/blog-admin/backend/config"
	"github.com/upb/blog-admin/backend/repositories"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// Collection names
const (
	ColAccounts         = "accounts"
	ColBlogs            = "blogs"
	ColModerationEvents = "moderation_events"
)

// Store is the MongoDB backed repositories.Store
type Store struct {
	client       *mongo.Client
	db           *mongo.Database
	logger       *zap.Logger
	transactions bool
}

var _ repositories.Store = (*Store)(nil)

// NewStore connects, pings and ensures indexes.
func NewStore(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*Store, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI).SetTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect failed: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping failed: %w", err)
	}

	s := &Store{client: client, db: client.Database(cfg.Database), logger: logger}

	if err := s.ensureIndexes(ctx); err != nil {
		// The unique email index backs duplicate detection, so this is fatal.
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	s.transactions = s.supportsTransactions(ctx)
	logger.Info("mongodb connection established",
		zap.String("connection", cfg.LogString()),
		zap.Bool("transactions", s.transactions))
	return s, nil
}

// supportsTransactions reports whether the deployment is a replica set or
// a sharded cluster. Standalone servers reject multi-document transactions.
func (s *Store) supportsTransactions(ctx context.Context) bool {
	var hello struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	if err := s.db.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		s.logger.Warn("could not detect deployment topology, moderation runs without transactions", zap.Error(err))
		return false
	}
	return hello.SetName != "" || hello.Msg == "isdbgrid"
}

// Close disconnects the client
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("closing mongodb connection")
	return s.client.Disconnect(ctx)
}

// HealthCheck pings the primary
func (s *Store) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongodb health check failed: %w", err)
	}
	return nil
}

// NewRepositories creates all repository instances
func (s *Store) NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		Accounts:         &AccountRepository{col: s.col(ColAccounts), logger: s.logger},
		Blogs:            &BlogRepository{col: s.col(ColBlogs), logger: s.logger},
		ModerationEvents: &ModerationEventRepository{col: s.col(ColModerationEvents)},
	}
}

// GetTransactionManager returns a session-backed manager on replica sets
// and a pass-through manager on standalone servers.
func (s *Store) GetTransactionManager() repositories.TransactionManager {
	if s.transactions {
		return NewTransactionManager(s.client, s.logger)
	}
	return NewTransactionManager(nil, s.logger)
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	type idx struct {
		col    string
		keys   bson.D
		unique bool
	}

	indexes := []idx{
		{ColAccounts, bson.D{{Key: "email", Value: 1}}, true},
		{ColAccounts, bson.D{{Key: "created_at", Value: -1}}, false},

		{ColBlogs, bson.D{{Key: "created_at", Value: -1}}, false},
		{ColBlogs, bson.D{{Key: "author_id", Value: 1}}, false},

		{ColModerationEvents, bson.D{{Key: "created_at", Value: -1}}, false},
		{ColModerationEvents, bson.D{{Key: "target_type", Value: 1}, {Key: "target_id", Value: 1}}, false},
	}

	for _, i := range indexes {
		model := mongo.IndexModel{Keys: i.keys}
		if i.unique {
			model.Options = options.Index().SetUnique(true)
		}
		if _, err := s.col(i.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("mongostore: create index on %s: %w", i.col, err)
		}
	}

	return nil
}
