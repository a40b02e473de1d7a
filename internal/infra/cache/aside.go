package cache

import (
	"context"
	"errors"
	"time"
)

type AsidePattern struct {
	cache   *Cache
	metrics *Metrics
}

func NewAsidePattern(cache *Cache, metrics *Metrics) *AsidePattern {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &AsidePattern{cache: cache, metrics: metrics}
}

func (a *AsidePattern) Metrics() *Metrics {
	return a.metrics
}

// GetOrLoad returns the cached value for key or calls loader and stores its
// result. Redis errors other than a miss fall through to the loader so the
// cache never turns a readable store into an unavailable one.
func GetOrLoad[T any](ctx context.Context, a *AsidePattern, key string, ttl time.Duration, loader func(context.Context) (T, error)) (T, error) {
	if a == nil {
		return loader(ctx)
	}

	var cached T
	err := a.cache.Get(ctx, key, &cached)
	if err == nil {
		a.metrics.RecordHit()
		return cached, nil
	}
	if errors.Is(err, ErrCacheMiss) {
		a.metrics.RecordMiss()
	} else {
		a.metrics.RecordError()
	}

	value, err := loader(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if err := a.cache.Set(ctx, key, value, ttl); err != nil {
		a.metrics.RecordError()
	}
	return value, nil
}

func (a *AsidePattern) Invalidate(ctx context.Context, keys ...string) error {
	if a == nil {
		return nil
	}
	return a.cache.Delete(ctx, keys...)
}
