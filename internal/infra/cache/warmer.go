package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Warmer struct {
	cache  *Cache
	logger *zap.Logger
}

func NewWarmer(cache *Cache, logger *zap.Logger) *Warmer {
	return &Warmer{
		cache:  cache,
		logger: logger,
	}
}

// Warm stores every entry under its key. Failures are logged and skipped;
// a cold key only costs one extra load later.
func (w *Warmer) Warm(ctx context.Context, entries map[string]interface{}, ttl time.Duration) int {
	warmed := 0
	for key, value := range entries {
		if err := w.cache.Set(ctx, key, value, ttl); err != nil {
			w.logger.Warn("failed to warm cache key", zap.String("key", key), zap.Error(err))
			continue
		}
		warmed++
	}
	w.logger.Debug("cache warmed", zap.Int("keys", warmed), zap.Int("requested", len(entries)))
	return warmed
}
