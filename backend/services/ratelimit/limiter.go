// Package ratelimit throttles unauthenticated lookups with fixed windows kept in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Result is the outcome of a single Allow call
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the caller identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// NoopLimiter allows everything. Used when no Redis URL is configured.
type NoopLimiter struct{}

func (NoopLimiter) Allow(context.Context, string) (*Result, error) {
	return &Result{Allowed: true}, nil
}

// RedisLimiter counts requests per key in a fixed window
type RedisLimiter struct {
	client   *redis.Client
	prefix   string
	limit    int
	window   time.Duration
	failOpen bool
	logger   *zap.Logger
}

// Options configures a RedisLimiter
type Options struct {
	Prefix   string
	Limit    int
	Window   time.Duration
	FailOpen bool
}

// NewRedisLimiter wraps an existing client
func NewRedisLimiter(client *redis.Client, opts Options, logger *zap.Logger) *RedisLimiter {
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	if opts.Prefix == "" {
		opts.Prefix = "ratelimit"
	}
	return &RedisLimiter{
		client:   client,
		prefix:   opts.Prefix,
		limit:    opts.Limit,
		window:   opts.Window,
		failOpen: opts.FailOpen,
		logger:   logger,
	}
}

// NewClientFromURL parses a redis:// URL and pings the server
func NewClientFromURL(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// Allow increments the counter for key. The first hit of a window sets its expiry.
// A limit of zero or less disables limiting.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	if l.limit <= 0 {
		return &Result{Allowed: true}, nil
	}

	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, l.window)
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		if l.failOpen {
			l.logger.Warn("rate limiter unavailable, allowing request",
				zap.String("key", redisKey),
				zap.Error(err))
			return &Result{Allowed: true, Limit: l.limit}, nil
		}
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := int(incr.Val())
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
	}
	if !result.Allowed {
		result.RetryAfter = ttl.Val()
		if result.RetryAfter <= 0 {
			result.RetryAfter = l.window
		}
	}
	return result, nil
}

// Close releases the underlying client
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
