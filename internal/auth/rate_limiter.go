package auth

import (
	"sync"
	"time"

	"github.com/weighright/portal/pkg/interfaces"
)

// RateLimiter implements rate limiting using token bucket algorithm
type RateLimiter struct {
	buckets    map[string]*tokenBucket
	bucketsMux sync.RWMutex
	limit      int
	period     time.Duration
	now        func() time.Time
}

var _ interfaces.RateLimiter = (*RateLimiter)(nil)

type tokenBucket struct {
	tokens     int
	lastRefill time.Time
	lastSeen   time.Time
	mutex      sync.Mutex
}

// NewRateLimiter allows limit requests per key per period
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// Allow takes one token from key's bucket
func (rl *RateLimiter) Allow(key string) (bool, error) {
	bucket := rl.getBucket(key)

	bucket.mutex.Lock()
	defer bucket.mutex.Unlock()

	now := rl.now()
	bucket.lastSeen = now
	elapsed := now.Sub(bucket.lastRefill)

	if elapsed >= rl.period {
		bucket.tokens = rl.limit
		bucket.lastRefill = now
	} else {
		tokensToAdd := int(elapsed.Nanoseconds() * int64(rl.limit) / rl.period.Nanoseconds())
		if tokensToAdd > 0 {
			bucket.tokens = min(bucket.tokens+tokensToAdd, rl.limit)
			bucket.lastRefill = now
		}
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true, nil
	}
	return false, nil
}

// Reset refills key's bucket
func (rl *RateLimiter) Reset(key string) error {
	rl.bucketsMux.Lock()
	defer rl.bucketsMux.Unlock()

	if bucket, exists := rl.buckets[key]; exists {
		bucket.mutex.Lock()
		bucket.tokens = rl.limit
		bucket.lastRefill = rl.now()
		bucket.mutex.Unlock()
	}
	return nil
}

// GetLimits returns current token count and limit for key
func (rl *RateLimiter) GetLimits(key string) (int, int, error) {
	bucket := rl.getBucket(key)

	bucket.mutex.Lock()
	defer bucket.mutex.Unlock()

	return bucket.tokens, rl.limit, nil
}

// Cleanup drops buckets not used for maxIdle and returns how many went
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	rl.bucketsMux.Lock()
	defer rl.bucketsMux.Unlock()

	cutoff := rl.now().Add(-maxIdle)
	removed := 0
	for key, bucket := range rl.buckets {
		bucket.mutex.Lock()
		if bucket.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
			removed++
		}
		bucket.mutex.Unlock()
	}
	return removed
}

// Len returns the number of tracked keys
func (rl *RateLimiter) Len() int {
	rl.bucketsMux.RLock()
	defer rl.bucketsMux.RUnlock()
	return len(rl.buckets)
}

func (rl *RateLimiter) getBucket(key string) *tokenBucket {
	rl.bucketsMux.RLock()
	bucket, exists := rl.buckets[key]
	rl.bucketsMux.RUnlock()

	if exists {
		return bucket
	}

	rl.bucketsMux.Lock()
	defer rl.bucketsMux.Unlock()

	// Double-check after acquiring write lock
	if bucket, exists := rl.buckets[key]; exists {
		return bucket
	}

	now := rl.now()
	bucket = &tokenBucket{
		tokens:     rl.limit,
		lastRefill: now,
		lastSeen:   now,
	}
	rl.buckets[key] = bucket
	return bucket
}
