package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bankbridge/backend/internal/interfaces/http/dto"
)

// RateLimiter implements a simple in-memory token bucket rate limiter.
// Buckets are keyed per client; a background loop evicts idle buckets.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*tokenBucket
	rate     int           // tokens per interval
	interval time.Duration // refill interval
	capacity int           // max tokens per bucket
}

type tokenBucket struct {
	tokens   int
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter allowing rate requests per interval
func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:  make(map[string]*tokenBucket),
		rate:     rate,
		interval: interval,
		capacity: rate,
	}
	go rl.cleanup()
	return rl
}

// Allow reports whether the request identified by key may proceed,
// along with the remaining token count for rate limit headers.
func (rl *RateLimiter) Allow(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	bucket, ok := rl.buckets[key]
	if !ok {
		bucket = &tokenBucket{tokens: rl.capacity, lastSeen: now}
		rl.buckets[key] = bucket
	}

	// Refill proportionally to elapsed time
	elapsed := now.Sub(bucket.lastSeen)
	refill := int(float64(rl.rate) * (float64(elapsed) / float64(rl.interval)))
	if refill > 0 {
		bucket.tokens += refill
		if bucket.tokens > rl.capacity {
			bucket.tokens = rl.capacity
		}
		bucket.lastSeen = now
	}

	if bucket.tokens <= 0 {
		bucket.lastSeen = now
		return false, 0
	}

	bucket.tokens--
	bucket.lastSeen = now
	return true, bucket.tokens
}

// cleanup evicts buckets that have been idle for longer than 10 intervals
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.interval * 10)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-rl.interval * 10)
		for key, bucket := range rl.buckets {
			if bucket.lastSeen.Before(cutoff) {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimit returns a middleware that limits requests per client.
// Requests are keyed by client IP, combined with the tenant header when
// present so tenants behind a shared proxy do not starve each other.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if tenantID := c.GetHeader("X-Tenant-ID"); tenantID != "" {
			key = key + ":" + tenantID
		}

		allowed, remaining := limiter.Allow(key)

		c.Writer.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.capacity))
		c.Writer.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Writer.Header().Set("Retry-After", strconv.Itoa(int(limiter.interval.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponse(
				dto.ErrCodeRateLimited,
				"Too many requests, please try again later",
			))
			return
		}

		c.Next()
	}
}
