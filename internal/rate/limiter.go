package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/multipanel/internal/cache"
)

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter: fixed window sencillo (INCR + EXPIRE)
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
	Max    int64
	Window time.Duration
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{
		Client: client,
		Prefix: prefix,
		Max:    int64(max),
		Window: window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.Window)
	redisKey := fmt.Sprintf("%s%s:%d", l.Prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	hits := incr.Val()
	res := Result{
		CurrentHits: hits,
		Allowed:     hits <= l.Max,
		Remaining:   l.Max - hits,
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = winStart.Add(l.Window).Sub(now)
	}
	return res, nil
}

// Reset limpia la ventana vigente de una key (ej: login exitoso).
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	winStart := time.Now().UTC().Truncate(l.Window)
	redisKey := fmt.Sprintf("%s%s:%d", l.Prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())
	return l.Client.Del(ctx, redisKey).Err()
}

// CacheLimiter: misma ventana fija pero sobre cache.Client, para correr
// sin Redis (dev/tests). El contador por key lo maneja Incr del cache.
type CacheLimiter struct {
	Cache  cache.Client
	Prefix string
	Max    int64
	Window time.Duration
}

func NewCacheLimiter(c cache.Client, prefix string, max int, window time.Duration) *CacheLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &CacheLimiter{Cache: c, Prefix: prefix, Max: int64(max), Window: window}
}

func (l *CacheLimiter) Allow(ctx context.Context, key string) (Result, error) {
	k := l.Prefix + strings.ReplaceAll(key, " ", "_")

	hits, err := l.Cache.Incr(ctx, k, l.Window)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		CurrentHits: hits,
		Allowed:     hits <= l.Max,
		Remaining:   l.Max - hits,
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		ttl, err := l.Cache.TTL(ctx, k)
		if err == nil && ttl > 0 {
			res.RetryAfter = ttl
		} else {
			res.RetryAfter = l.Window
		}
	}
	return res, nil
}

// Reset limpia la ventana de una key (ej: login exitoso).
func (l *CacheLimiter) Reset(ctx context.Context, key string) error {
	return l.Cache.Delete(ctx, l.Prefix+strings.ReplaceAll(key, " ", "_"))
}
