package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RateLimitInfo captures limiter response metadata.
type RateLimitInfo struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter defines common interface.
type Limiter interface {
	Allow(ctx context.Context, key string) (RateLimitInfo, error)
}

// MemoryLimiter implements a token bucket per key refilled at limit per minute.
type MemoryLimiter struct {
	limit int
	burst int
	now   func() time.Time
	store map[string]*bucket
	mu    sync.Mutex
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewMemoryLimiter builds RAM limiter.
func NewMemoryLimiter(limit, burst int) *MemoryLimiter {
	return &MemoryLimiter{
		limit: limit,
		burst: burst,
		now:   time.Now,
		store: make(map[string]*bucket),
	}
}

// Allow implements limiter.
func (m *MemoryLimiter) Allow(ctx context.Context, key string) (RateLimitInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	capacity := float64(m.limit + m.burst)
	b, ok := m.store[key]
	if !ok {
		b = &bucket{tokens: capacity, last: now}
		m.store[key] = b
	}
	elapsed := now.Sub(b.last).Minutes()
	b.tokens = math.Min(capacity, b.tokens+elapsed*float64(m.limit))
	b.last = now
	reset := now.Add(time.Minute)
	if b.tokens >= 1 {
		b.tokens--
		return RateLimitInfo{Allowed: true, Limit: m.limit, Remaining: int(b.tokens), Reset: reset}, nil
	}
	return RateLimitInfo{Allowed: false, Limit: m.limit, Remaining: 0, Reset: reset}, nil
}

// RedisLimiter coordinates distributed throttling with a fixed one-minute window.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	prefix string
}

// NewRedisLimiter builds redis limiter.
func NewRedisLimiter(client *redis.Client, limit int, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, prefix: prefix}
}

// Allow implements limiter.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (RateLimitInfo, error) {
	redisKey := r.prefix + ":" + key
	count64, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return RateLimitInfo{}, err
	}
	if count64 == 1 {
		if err := r.client.Expire(ctx, redisKey, time.Minute).Err(); err != nil {
			return RateLimitInfo{}, err
		}
	}
	window, err := r.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return RateLimitInfo{}, err
	}
	count := int(count64)
	if window <= 0 {
		window = time.Minute
	}
	info := RateLimitInfo{Limit: r.limit, Reset: time.Now().Add(window)}
	if count <= r.limit {
		info.Allowed = true
		info.Remaining = r.limit - count
	}
	return info, nil
}
