package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRedisUnavailable = errors.New("ratelimit: redis unavailable")

// Rule is a fixed window budget: at most Max hits per Window for one key.
type Rule struct {
	Name    string
	Max     int
	Window  time.Duration
	Message string
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// Limiter counts hits in Redis. INCR is atomic, so concurrent requests from
// different server instances share one budget.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
}

func New(client redis.UniversalClient, prefix string) *Limiter {
	if prefix == "" {
		prefix = "hrportal:ratelimit"
	}
	return &Limiter{redis: client, prefix: prefix}
}

// Allow records a hit for key under rule and reports whether it fits the
// budget of the current window.
func (l *Limiter) Allow(ctx context.Context, rule Rule, key string) (Result, error) {
	redisKey := fmt.Sprintf("%s:%s:%s", l.prefix, rule.Name, key)

	count, err := l.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// fixed window: the TTL is set by the first hit only
	if count == 1 {
		if err := l.redis.Expire(ctx, redisKey, rule.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	ttl, err := l.redis.TTL(ctx, redisKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		// key lost its expiry (e.g. crash between INCR and EXPIRE)
		if err := l.redis.Expire(ctx, redisKey, rule.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		ttl = rule.Window
	}

	remaining := rule.Max - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count <= int64(rule.Max),
		Limit:     rule.Max,
		Remaining: remaining,
		ResetIn:   ttl,
	}, nil
}
