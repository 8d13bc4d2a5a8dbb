package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/telcousage/internal/config"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestTokenBucketExhaustsBurst(t *testing.T) {
	_, client := newTestClient(t)
	bucket := NewTokenBucket(client)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := bucket.Allow(ctx, "k", 0.001, 2)
		require.NoError(t, err)
		require.True(t, res.Allowed, "request %d should pass", i)
	}

	res, err := bucket.Allow(ctx, "k", 0.001, 2)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Positive(t, res.RetryAfter)
}

func TestTokenBucketRejectsBadInput(t *testing.T) {
	_, client := newTestClient(t)
	bucket := NewTokenBucket(client)

	_, err := bucket.Allow(context.Background(), "", 1, 1)
	require.Error(t, err)
	_, err = bucket.Allow(context.Background(), "k", 0, 1)
	require.Error(t, err)

	var nilBucket *TokenBucket
	_, err = nilBucket.Allow(context.Background(), "k", 1, 1)
	require.Error(t, err)
}

func TestLockerIsExclusiveUntilReleased(t *testing.T) {
	_, client := newTestClient(t)
	locker := NewLocker(client)
	ctx := context.Background()
	key := RollupKey("data", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	token, ok, err := locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, locker.Release(ctx, key, "not-the-owner"))
	_, ok, err = locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, locker.Release(ctx, key, token))
	_, ok, err = locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRollupKeyUsesUTCDay(t *testing.T) {
	// 2024-01-01 20:00 in UTC-5 is already 2024-01-02 in UTC.
	day := time.Date(2024, 1, 1, 20, 0, 0, 0, time.FixedZone("EST", -5*3600))
	if got := RollupKey("voice", day); got != "rollup:voice:2024-01-02" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestUsageIngestLimiterDisabledWithoutRate(t *testing.T) {
	_, client := newTestClient(t)
	limiter := NewUsageIngestLimiter(config.Config{}, NewTokenBucket(client))
	require.Nil(t, limiter)

	res, err := limiter.AllowSubscription(context.Background(), "att", 1)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestUsageIngestLimiterPerSubscription(t *testing.T) {
	_, client := newTestClient(t)
	limiter := NewUsageIngestLimiter(config.Config{UsageIngestRate: 1, UsageIngestBurst: 1}, NewTokenBucket(client))
	ctx := context.Background()

	res, err := limiter.AllowSubscription(ctx, "att", 1)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = limiter.AllowSubscription(ctx, "att", 1)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	res, err = limiter.AllowSubscription(ctx, "sprint", 1)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}
