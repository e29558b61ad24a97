package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterTTL = 30 * time.Minute

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// userLimiter keeps one token bucket per caller and forgets idle callers.
type userLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	entries   map[string]*limiterEntry
	lastSweep time.Time
}

func newUserLimiter(limit rate.Limit, burst int) *userLimiter {
	return &userLimiter{
		limit:     limit,
		burst:     burst,
		entries:   make(map[string]*limiterEntry),
		lastSweep: time.Now(),
	}
}

func (l *userLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > limiterTTL {
		for k, e := range l.entries {
			if now.Sub(e.lastUse) > limiterTTL {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastUse = now
	return e.limiter.Allow()
}

// rateLimit throttles by X-User-ID, falling back to the client IP for anonymous callers.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "user:" + c.GetHeader(headerUserID)
		if key == "user:" {
			key = "ip:" + c.ClientIP()
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(s.opts.RateBurst))
		if !s.limiter.allow(key) {
			c.Header("X-RateLimit-Remaining", "0")
			respondError(c, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please slow down.")
			return
		}
		c.Next()
	}
}

// requireSecret compares header against expected in constant time. An empty
// expected value disables the route group.
func (s *Server) requireSecret(header, expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			respondError(c, http.StatusForbidden, "disabled", "endpoint is not configured")
			return
		}
		got := c.GetHeader(header)
		if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			s.logger.Printf("[requireSecret] rejected %s %s: bad %s", c.Request.Method, c.Request.URL.Path, header)
			respondError(c, http.StatusUnauthorized, "unauthorized", "invalid "+header)
			return
		}
		c.Next()
	}
}
