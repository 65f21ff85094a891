package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	dashboarddomain "github.com/smallbiznis/subsight/internal/dashboard/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() dashboarddomain.Snapshot {
	return dashboarddomain.Snapshot{
		AsOf:  "2024-12-31",
		RunID: "1234",
		KPIs: dashboarddomain.KPIs{
			TotalRevenue: 123456,
			ActiveUsers:  7,
			TotalUsers:   10,
			ChurnRate:    30,
			ARPU:         12346,
		},
		MRR:                 []dashboarddomain.MRRPoint{{Month: "2024-11", MRR: 4497}, {Month: "2024-12", MRR: 5996}},
		ActiveSubscriptions: []dashboarddomain.ActiveSubscriptionsPoint{{Month: "2023-02", ActiveSubscriptions: 3}},
		RevenueByChannel:    []dashboarddomain.ChannelRevenue{{Channel: "Organic", Revenue: 99900}},
		Retention:           []dashboarddomain.RetentionPoint{{MonthsSinceSignup: 0, ActiveUsers: 10}},
	}
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client), srv
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, srv := newRedisCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "snap")
	require.NoError(t, err)
	assert.False(t, ok)

	want := sampleSnapshot()
	require.NoError(t, c.Set(ctx, "snap", want, time.Minute))

	got, ok, err := c.Get(ctx, "snap")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	srv.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "snap")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheLock(t *testing.T) {
	c, srv := newRedisCache(t)
	ctx := context.Background()

	token, ok, err := c.TryLock(ctx, "snap", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = c.TryLock(ctx, "snap", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Release(ctx, "snap", "not-the-owner"))
	assert.True(t, srv.Exists(lockKey("snap")))

	require.NoError(t, c.Release(ctx, "snap", token))
	assert.False(t, srv.Exists(lockKey("snap")))

	_, ok, err = c.TryLock(ctx, "snap", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisCacheLockRejectsBadInput(t *testing.T) {
	c, _ := newRedisCache(t)

	_, _, err := c.TryLock(context.Background(), "", time.Minute)
	assert.Error(t, err)
	_, _, err = c.TryLock(context.Background(), "snap", 0)
	assert.Error(t, err)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "snap", sampleSnapshot(), time.Minute))
	got, ok, err := c.Get(ctx, "snap")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-12-31", got.AsOf)

	now = now.Add(time.Minute)
	_, ok, err = c.Get(ctx, "snap")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheLock(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	token, ok, err := c.TryLock(ctx, "snap", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = c.TryLock(ctx, "snap", 10*time.Second)
	assert.False(t, ok)

	now = now.Add(11 * time.Second)
	_, ok, _ = c.TryLock(ctx, "snap", 10*time.Second)
	assert.True(t, ok, "expired lock is reclaimable")

	// stale token must not release the new holder
	require.NoError(t, c.Release(ctx, "snap", token))
	_, ok, _ = c.TryLock(ctx, "snap", 10*time.Second)
	assert.False(t, ok)
}
