package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/marketly/marketly-api/internal/pkg/logger"
	"github.com/marketly/marketly-api/internal/pkg/response"
)

// RateLimiter throttles requests per authenticated user (or client IP) with
// a Redis GCRA limiter, falling back to an in-process limiter when Redis is
// unavailable or not configured.
type RateLimiter struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	limit    redis_rate.Limit
}

// NewRateLimiter builds a limiter allowing perMinute requests with burst.
// rdb may be nil.
func NewRateLimiter(rdb *redis.Client, perMinute, burst int) *RateLimiter {
	rl := &RateLimiter{
		fallback: newLocalLimiter(),
		limit:    redis_rate.Limit{Rate: perMinute, Burst: burst, Period: time.Minute},
	}
	if rdb != nil {
		rl.limiter = redis_rate.NewLimiter(rdb)
	}
	return rl
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rateLimitKey(r)

		res, err := rl.allow(r.Context(), key)
		if err != nil {
			logger.FromContext(r.Context()).Warn().Err(err).Str("key", key).Msg("rate limiter error, failing open")
			next.ServeHTTP(w, r)
			return
		}

		setRateLimitHeaders(w, res, rl.limit)

		if res.Allowed == 0 {
			retryAfter := int(res.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			response.TooManyRequests(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ctx context.Context, key string) (*redis_rate.Result, error) {
	if rl.limiter == nil {
		return rl.fallback.allow(key, rl.limit)
	}
	res, err := rl.limiter.Allow(ctx, key, rl.limit)
	if err != nil {
		return rl.fallback.allow(key, rl.limit)
	}
	return res, nil
}

func rateLimitKey(r *http.Request) string {
	if id := GetUserID(r.Context()); id != uuid.Nil {
		return "ratelimit:user:" + id.String()
	}
	return "ratelimit:ip:" + clientIP(r)
}

func setRateLimitHeaders(w http.ResponseWriter, res *redis_rate.Result, limit redis_rate.Limit) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// localLimiter is the per-process token bucket used without Redis.
type localLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	lastSweep time.Time
}

const localEntryTTL = 10 * time.Minute

func newLocalLimiter() *localLimiter {
	return &localLimiter{limiters: make(map[string]*limiterEntry), lastSweep: time.Now()}
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	if limit.Rate <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf("invalid rate limit %+v", limit)
	}
	perSec := float64(limit.Rate) / limit.Period.Seconds()
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > localEntryTTL {
		for k, e := range l.limiters {
			if now.Sub(e.lastAccess) > localEntryTTL {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(perSec), limit.Burst)}
		l.limiters[key] = entry
	}
	entry.lastAccess = now

	res := &redis_rate.Result{
		Limit:      limit,
		ResetAfter: time.Duration(float64(time.Second) / perSec),
		RetryAfter: -1,
	}
	if entry.limiter.AllowN(now, 1) {
		res.Allowed = 1
	} else {
		res.RetryAfter = res.ResetAfter
	}
	if remaining := int(entry.limiter.TokensAt(now)); remaining > 0 {
		res.Remaining = remaining
	}
	return res, nil
}
