package memory

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter is a fixed-window counter keyed like the redis one. Now
// is injectable so tests can pin the window.
type RateLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
	Now    func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		counts: make(map[string]int64),
		Now:    time.Now,
	}
}

func (r *RateLimiter) IsLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.Now().Unix() / int64(window.Seconds())
	bucketKey := fmt.Sprintf("%s:%d", key, bucket)

	r.counts[bucketKey]++
	return r.counts[bucketKey] > int64(limit), nil
}
