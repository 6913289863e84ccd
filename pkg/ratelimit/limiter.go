package ratelimit

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// maxBuckets bounds the number of keys tracked at once
const maxBuckets = 10000

// RateLimiter keeps one token bucket per key
type RateLimiter struct {
	buckets    *lru.LRU[string, *rate.Limiter]
	capacity   int
	refillRate float64
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter
// capacity: Maximum number of requests allowed in a burst per key
// refillRate: Number of requests allowed per second per key
// ttl: Time to keep inactive buckets in memory (0 = forever)
func NewRateLimiter(capacity int, refillRate float64, ttl time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets:    lru.NewLRU[string, *rate.Limiter](maxBuckets, nil, ttl),
		capacity:   capacity,
		refillRate: refillRate,
	}
}

// Allow checks if a request for the given key should be allowed
func (rl *RateLimiter) Allow(key string) bool {
	return rl.bucket(key).Allow()
}

func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets.Get(key)
	if !ok {
		b = rate.NewLimiter(rate.Limit(rl.refillRate), rl.capacity)
	}
	// re-adding refreshes the bucket's TTL
	rl.buckets.Add(key, b)
	return b
}

// Reset forgets the bucket of key, restoring its full burst
func (rl *RateLimiter) Reset(key string) {
	rl.buckets.Remove(key)
}

// Stats returns statistics about the rate limiter
type Stats struct {
	ActiveBuckets int
	TotalCapacity int
	RefillRate    float64
}

// GetStats returns current statistics
func (rl *RateLimiter) GetStats() Stats {
	return Stats{
		ActiveBuckets: rl.buckets.Len(),
		TotalCapacity: rl.capacity,
		RefillRate:    rl.refillRate,
	}
}
