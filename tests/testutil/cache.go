package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/Alexander-D-Karpov/huddle/internal/common/config"
	infraCache "github.com/Alexander-D-Karpov/huddle/internal/infra/cache"
)

var (
	cacheOnce   sync.Once
	sharedCache *infraCache.Cache
	cacheErr    error
)

func GetCache(t *testing.T) *infraCache.Cache {
	t.Helper()

	cacheOnce.Do(func() {
		sharedCache, cacheErr = infraCache.New(config.RedisConfig{
			Host:     envOr("REDIS_HOST", "localhost"),
			Port:     envIntOr("REDIS_PORT", 6379),
			Password: envOr("REDIS_PASSWORD", ""),
			DB:       envIntOr("REDIS_DB", 15),
			Enabled:  true,
		})
	})

	if cacheErr != nil {
		t.Logf("testutil: Redis cache not available (%v); proceeding without cache", cacheErr)
		return nil
	}
	return sharedCache
}

// MustCache skips the test when redis is not reachable.
func MustCache(t *testing.T) *infraCache.Cache {
	t.Helper()
	c := GetCache(t)
	if c == nil {
		t.Skip("Redis is required for this test but not available")
	}
	return c
}

func CacheFlush(t *testing.T) {
	t.Helper()
	if sharedCache != nil {
		if err := sharedCache.Client().FlushDB(context.Background()).Err(); err != nil {
			t.Logf("testutil: FlushDB failed: %v", err)
		}
	}
}

func CacheTeardown() {
	if sharedCache != nil {
		_ = sharedCache.Close()
		sharedCache = nil
	}
}
