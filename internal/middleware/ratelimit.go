package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	appErrors "github.com/noah-isme/sma-occurrences-api/pkg/errors"
	"github.com/noah-isme/sma-occurrences-api/pkg/response"
)

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	mu  sync.RWMutex
	ips map[string]*rate.Limiter
	r   rate.Limit
	b   int
}

// NewIPRateLimiter creates a limiter allowing r events per second with burst b.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{ips: make(map[string]*rate.Limiter), r: r, b: b}
}

// Limiter returns the bucket of ip, creating it on first use.
func (l *IPRateLimiter) Limiter(ip string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.ips[ip]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, exists = l.ips[ip]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(l.r, l.b)
	l.ips[ip] = limiter
	return limiter
}

// RateLimit throttles requests per client IP. A non-positive rate disables it.
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := NewIPRateLimiter(rate.Limit(perSecond), burst)
	return func(c *gin.Context) {
		if !limiter.Limiter(c.ClientIP()).Allow() {
			response.Error(c, appErrors.ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
