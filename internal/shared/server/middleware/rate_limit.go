package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"docproc/internal/shared/server/respond"
)

// RateLimitRule allows PerMinute requests per client with the given burst.
type RateLimitRule struct {
	PerMinute int
	Burst     int
}

func (r RateLimitRule) enabled() bool {
	return r.PerMinute > 0
}

func (r RateLimitRule) burst() int {
	if r.Burst > 0 {
		return r.Burst
	}
	return r.PerMinute
}

const defaultIdleTTL = 10 * time.Minute

// RateLimiter keeps one token bucket per client key. Buckets idle for
// IdleTTL and refilled to burst are dropped, since a fresh bucket is identical.
type RateLimiter struct {
	IdleTTL time.Duration

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter constructs a limiter; now may be nil.
func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		IdleTTL: defaultIdleTTL,
		buckets: make(map[string]*bucket),
		now:     now,
	}
}

// Allow consumes a token for key, or reports how long until one is available.
func (l *RateLimiter) Allow(key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil || !rule.enabled() {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	l.sweepLocked(now)
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(float64(rule.PerMinute)/60.0), rule.burst())}
		l.buckets[key] = b
	}
	b.lastSeen = now
	lim := b.lim
	l.mu.Unlock()

	if lim.AllowN(now, 1) {
		return true, 0
	}
	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Minute
	}
	delay := res.DelayFrom(now)
	res.CancelAt(now)
	return false, delay
}

// sweepLocked runs at most once per IdleTTL. Caller holds l.mu.
func (l *RateLimiter) sweepLocked(now time.Time) {
	ttl := l.IdleTTL
	if ttl <= 0 {
		ttl = defaultIdleTTL
	}
	if now.Sub(l.lastSweep) < ttl {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= ttl && b.lim.TokensAt(now) >= float64(b.lim.Burst()) {
			delete(l.buckets, key)
		}
	}
}

// RateLimit rejects clients that exceed rule with 429 and a Retry-After header.
func RateLimit(rule RateLimitRule, limiter *RateLimiter) gin.HandlerFunc {
	if limiter == nil {
		limiter = NewRateLimiter(nil)
	}
	return func(c *gin.Context) {
		if !rule.enabled() {
			c.Next()
			return
		}
		key := strings.TrimSpace(c.ClientIP()) + "|" + c.FullPath()
		allowed, retryAfter := limiter.Allow(key, rule)
		if allowed {
			c.Next()
			return
		}
		seconds := int(math.Ceil(retryAfter.Seconds()))
		if seconds <= 0 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "Too many uploads, retry later")
	}
}
