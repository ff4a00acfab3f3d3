package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"golang.org/x/time/rate"

	mwopts "github.com/kart-io/agriqa/pkg/options/middleware"
	apierrors "github.com/kart-io/agriqa/pkg/utils/errors"
	"github.com/kart-io/agriqa/pkg/utils/response"
)

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter keeps one token bucket per client IP and drops buckets idle
// longer than ttl.
type ipLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*clientBucket
	lastSweep time.Time
}

func newIPLimiter(opts mwopts.RateLimitOptions) *ipLimiter {
	ttl := opts.IdleTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ipLimiter{
		limit:   rate.Limit(opts.RPS),
		burst:   max(opts.Burst, 1),
		ttl:     ttl,
		now:     time.Now,
		buckets: make(map[string]*clientBucket),
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.ttl {
		for key, b := range l.buckets {
			if now.Sub(b.lastSeen) >= l.ttl {
				delete(l.buckets, key)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (l *ipLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimitWithOptions rejects requests with 429 once a client IP exceeds
// its token bucket. Paths outside opts.Paths pass through.
func RateLimitWithOptions(opts mwopts.RateLimitOptions) gin.HandlerFunc {
	return rateLimit(newIPLimiter(opts), opts.Paths)
}

func rateLimit(l *ipLimiter, paths []string) gin.HandlerFunc {
	limited := newPathMatcher(paths)
	if len(paths) == 0 {
		limited = func(string) bool { return true }
	}

	return func(c *gin.Context) {
		if !limited(c.Request.URL.Path) {
			c.Next()
			return
		}
		ip := GetClientIP(c.Request)
		if !l.allow(ip) {
			logger.Warnw("Rate limit exceeded",
				"client_ip", ip,
				"path", c.Request.URL.Path,
				"request_id", GetRequestID(c.Request.Context()),
			)
			c.Header("Retry-After", "1")
			response.Fail(c, apierrors.ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
