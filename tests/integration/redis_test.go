package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/bans"
	"github.com/Alexander-D-Karpov/huddle/internal/events"
	"github.com/Alexander-D-Karpov/huddle/internal/infra/cache"
	"github.com/Alexander-D-Karpov/huddle/internal/ratelimit"
	"github.com/Alexander-D-Karpov/huddle/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisBrokerRoundTrip(t *testing.T) {
	c := testutil.MustCache(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	broker := events.NewRedisBroker(c.Client(), "huddle:test:"+uuid.NewString(), zap.NewNop())
	ch, err := broker.Subscribe(ctx)
	require.NoError(t, err)

	sent := events.New(events.MessagePosted, uuid.New(), time.Now().UTC()).ForMessage(99)
	require.Eventually(t, func() bool {
		if err := broker.Publish(ctx, sent); err != nil {
			return false
		}
		select {
		case got := <-ch:
			assert.Equal(t, sent.ID, got.ID)
			assert.Equal(t, events.MessagePosted, got.Type)
			assert.Equal(t, int64(99), got.MessageID)
			return true
		case <-time.After(200 * time.Millisecond):
			return false
		}
	}, 4*time.Second, 50*time.Millisecond)
}

func TestBanRegistryWithRedisCache(t *testing.T) {
	c := testutil.MustCache(t)
	testutil.CacheFlush(t)
	ctx := context.Background()

	metrics := cache.NewMetrics()
	aside := cache.NewAsidePattern(c, metrics)
	store := bans.NewMemoryStore(nil)
	registry := bans.NewRegistry(store, zap.NewNop(), bans.WithCache(aside, time.Minute))

	mod, target := uuid.New(), uuid.New()
	now := time.Now()

	restricted, err := registry.IsRestricted(ctx, target, now)
	require.NoError(t, err)
	assert.False(t, restricted)

	restricted, err = registry.IsRestricted(ctx, target, now)
	require.NoError(t, err)
	assert.False(t, restricted)
	assert.Equal(t, uint64(1), metrics.Stats().Hits)

	// banning invalidates the cached empty list
	ban, err := registry.Ban(ctx, mod, bans.BanRequest{TargetID: target, Permanent: true})
	require.NoError(t, err)

	restricted, err = registry.IsRestricted(ctx, target, now)
	require.NoError(t, err)
	assert.True(t, restricted)

	_, err = registry.Unban(ctx, ban.ID, mod)
	require.NoError(t, err)

	restricted, err = registry.IsRestricted(ctx, target, now)
	require.NoError(t, err)
	assert.False(t, restricted)

	warmed, err := registry.Warm(ctx, cache.NewWarmer(c, zap.NewNop()))
	require.NoError(t, err)
	assert.Zero(t, warmed)
}

func TestSharedRateLimitWindow(t *testing.T) {
	c := testutil.MustCache(t)
	testutil.CacheFlush(t)
	ctx := context.Background()

	// each local bucket admits 3, the shared window caps both at rpm+burst = 5
	a := ratelimit.NewLimiter(c, 2, 3, true, zap.NewNop())
	b := ratelimit.NewLimiter(c, 2, 3, true, zap.NewNop())
	defer a.Close()
	defer b.Close()

	key := uuid.NewString()
	allowed := 0
	for i := 0; i < 3; i++ {
		for _, l := range []*ratelimit.Limiter{a, b} {
			ok, err := l.Allow(ctx, ratelimit.ScopePost, key)
			require.NoError(t, err)
			if ok {
				allowed++
			}
		}
	}
	assert.Equal(t, 5, allowed)
}
