package budget

import (
	"sync"
	"time"
)

// bucket is a token-bucket rate limiter. Tokens refill continuously at
// refillRate per second up to maxTokens.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time

	// now is swappable for tests.
	now func() time.Time
}

func newBucket(ratePerSecond float64, burst int, now func() time.Time) *bucket {
	if ratePerSecond <= 0 {
		ratePerSecond = 10
	}
	if burst <= 0 {
		burst = int(ratePerSecond * 2)
	}
	if now == nil {
		now = time.Now
	}
	return &bucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: ratePerSecond,
		lastRefill: now(),
		now:        now,
	}
}

// allow consumes one token when available.
func (b *bucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func (b *bucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now
}
