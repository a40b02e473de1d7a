package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/infra/cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Scope names a bucket family with its own limits.
type Scope string

const (
	ScopePost    Scope = "post"
	ScopeRequest Scope = "request"
)

type LimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// Limiter keeps per-key token buckets in process and, when redis is
// configured, a shared fixed-window counter so several API instances agree.
// Redis failures degrade to the local buckets.
type Limiter struct {
	cache   *cache.Cache
	enabled bool
	limits  map[Scope]LimitConfig
	logger  *zap.Logger

	mu    sync.Mutex
	local map[string]*rate.Limiter
	seen  map[string]time.Time

	cleanupDone chan struct{}
	closeOnce   sync.Once
}

func NewLimiter(c *cache.Cache, postsPerMinute, burst int, enabled bool, logger *zap.Logger) *Limiter {
	l := &Limiter{
		cache:   c,
		enabled: enabled,
		limits: map[Scope]LimitConfig{
			ScopePost:    {RequestsPerMinute: postsPerMinute, Burst: burst},
			ScopeRequest: {RequestsPerMinute: 600, Burst: 100},
		},
		logger:      logger,
		local:       make(map[string]*rate.Limiter),
		seen:        make(map[string]time.Time),
		cleanupDone: make(chan struct{}),
	}

	if enabled {
		go l.cleanup(5 * time.Minute)
	}
	return l
}

func (l *Limiter) Allow(ctx context.Context, scope Scope, key string) (bool, error) {
	if !l.enabled {
		return true, nil
	}

	cfg, ok := l.limits[scope]
	if !ok || cfg.RequestsPerMinute <= 0 {
		return true, nil
	}
	bucket := string(scope) + ":" + key

	if !l.allowLocal(bucket, cfg) {
		return false, nil
	}
	if l.cache == nil {
		return true, nil
	}

	count, err := l.cache.IncrWindow(ctx, "ratelimit:"+bucket, time.Minute)
	if err != nil {
		l.logger.Debug("shared rate limit unavailable, using local bucket", zap.String("bucket", bucket), zap.Error(err))
		return true, nil
	}
	return count <= int64(cfg.RequestsPerMinute+cfg.Burst), nil
}

func (l *Limiter) allowLocal(bucket string, cfg LimitConfig) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.local[bucket]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), max(cfg.Burst, 1))
		l.local[bucket] = limiter
	}
	l.seen[bucket] = time.Now()
	return limiter.Allow()
}

// cleanup drops buckets idle for longer than every.
func (l *Limiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			l.mu.Lock()
			for bucket, last := range l.seen {
				if now.Sub(last) > every {
					delete(l.local, bucket)
					delete(l.seen, bucket)
				}
			}
			l.mu.Unlock()
		case <-l.cleanupDone:
			return
		}
	}
}

func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.cleanupDone) })
}
