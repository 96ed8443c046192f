package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/panelapp/addressmapper/pkg/metrics"
)

// limiterStore holds the per-key token buckets of one middleware instance
type limiterStore struct {
	limiters sync.Map // map[string]*rate.Limiter
	rps      float64
	burst    int
}

// get returns (and lazily creates) a token-bucket limiter for the given key
func (s *limiterStore) get(key string) *rate.Limiter {
	v, ok := s.limiters.Load(key)
	if ok {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(rate.Limit(s.rps), s.burst)
	s.limiters.Store(key, lim)
	return lim
}

// limiterKey picks the throttling key for a request: the external account
// from verified claims when present, otherwise the client IP.
func limiterKey(c *gin.Context) string {
	if claims, ok := Claims(c); ok && claims.Account != "" {
		return "account:" + claims.Account
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// RateLimitMiddleware returns a Gin middleware enforcing a token-bucket per-key limit.
// rps = allowed events per second, burst = maximum tokens in bucket.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	store := &limiterStore{rps: rps, burst: burst}
	return func(c *gin.Context) {
		lim := store.get(limiterKey(c))
		if !lim.Allow() {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
