package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNoopLimiter(t *testing.T) {
	res, err := NoopLimiter{}.Allow(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRedisLimiter_Disabled(t *testing.T) {
	// A zero limit never touches Redis.
	l := NewRedisLimiter(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), Options{Limit: 0}, zap.NewNop())

	res, err := l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRedisLimiter_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	t.Run("fail open", func(t *testing.T) {
		l := NewRedisLimiter(client, Options{Limit: 5, FailOpen: true}, zap.NewNop())
		res, err := l.Allow(context.Background(), "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})

	t.Run("fail closed", func(t *testing.T) {
		l := NewRedisLimiter(client, Options{Limit: 5}, zap.NewNop())
		_, err := l.Allow(context.Background(), "1.2.3.4")
		assert.Error(t, err)
	})
}

func TestRedisLimiter_Window(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	l := NewRedisLimiter(client, Options{
		Prefix: "test-" + uuid.NewString(),
		Limit:  2,
		Window: time.Minute,
	}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 1-i, res.Remaining)
	}

	res, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, time.Minute)

	// Keys are independent.
	res, err = l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
