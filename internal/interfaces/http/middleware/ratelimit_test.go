package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	t.Run("allows requests within limit", func(t *testing.T) {
		limiter := NewRateLimiter(5, time.Minute)

		for i := 0; i < 5; i++ {
			ok, _ := limiter.Allow("client1")
			assert.True(t, ok, "request %d should be allowed", i+1)
		}
	})

	t.Run("blocks requests exceeding limit", func(t *testing.T) {
		limiter := NewRateLimiter(3, time.Minute)

		for i := 0; i < 3; i++ {
			ok, _ := limiter.Allow("client2")
			assert.True(t, ok)
		}

		ok, remaining := limiter.Allow("client2")
		assert.False(t, ok)
		assert.Equal(t, 0, remaining)
	})

	t.Run("separate buckets per client", func(t *testing.T) {
		limiter := NewRateLimiter(2, time.Minute)

		limiter.Allow("clientA")
		limiter.Allow("clientA")
		ok, _ := limiter.Allow("clientA")
		assert.False(t, ok)

		ok, _ = limiter.Allow("clientB")
		assert.True(t, ok)
	})

	t.Run("refills after interval", func(t *testing.T) {
		limiter := NewRateLimiter(2, 50*time.Millisecond)

		limiter.Allow("client3")
		limiter.Allow("client3")
		ok, _ := limiter.Allow("client3")
		assert.False(t, ok)

		time.Sleep(60 * time.Millisecond)

		ok, _ = limiter.Allow("client3")
		assert.True(t, ok)
	})

	t.Run("concurrent access is safe", func(t *testing.T) {
		limiter := NewRateLimiter(100, time.Minute)
		var wg sync.WaitGroup
		var mu sync.Mutex
		allowed := 0

		for i := 0; i < 150; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, _ := limiter.Allow("shared"); ok {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 100, allowed)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(limiter *RateLimiter) *gin.Engine {
		r := gin.New()
		r.Use(RateLimit(limiter))
		r.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
		return r
	}

	t.Run("passes requests under the limit", func(t *testing.T) {
		r := newRouter(NewRateLimiter(2, time.Minute))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("returns 429 when limit exceeded", func(t *testing.T) {
		r := newRouter(NewRateLimiter(1, time.Minute))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
		assert.Contains(t, w.Body.String(), "ERR_RATE_LIMITED")
	})

	t.Run("tenant header separates buckets behind one IP", func(t *testing.T) {
		r := newRouter(NewRateLimiter(1, time.Minute))

		reqA := httptest.NewRequest(http.MethodGet, "/test", nil)
		reqA.Header.Set("X-Tenant-ID", "tenant-a")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, reqA)
		assert.Equal(t, http.StatusOK, w.Code)

		reqB := httptest.NewRequest(http.MethodGet, "/test", nil)
		reqB.Header.Set("X-Tenant-ID", "tenant-b")
		w = httptest.NewRecorder()
		r.ServeHTTP(w, reqB)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
