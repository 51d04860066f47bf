package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// visitorTTL is the least time an idle client's limiter is kept. Slow rates keep visitors until
// their bucket has refilled, so forgetting one never grants extra attempts.
const visitorTTL = 3 * time.Minute

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// LoginLimiter throttles login attempts per client address. A nil limiter allows everything.
type LoginLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewLoginLimiter allows perMinute attempts per client, with bursts of the same size.
// It returns nil when perMinute is not positive.
func NewLoginLimiter(perMinute float64) *LoginLimiter {
	if perMinute <= 0 {
		return nil
	}
	burst := max(1, int(perMinute))
	refill := time.Duration(float64(burst) / perMinute * float64(time.Minute))
	return &LoginLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
		ttl:      max(visitorTTL, refill),
		now:      time.Now,
	}
}

// Allow reports whether key may attempt a login now.
func (l *LoginLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.ttl {
		for k, v := range l.visitors {
			if now.Sub(v.seen) > l.ttl {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.seen = now
	return v.limiter.AllowN(now, 1)
}

// Len returns the number of tracked clients.
func (l *LoginLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// RateLimit answers 429 once key's client has used up its attempts.
func RateLimit(l *LoginLimiter, key func(*http.Request) string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(key(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(int(l.retryAfter().Seconds())))
				http.Error(w, "too many login attempts", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *LoginLimiter) retryAfter() time.Duration {
	return time.Duration(float64(time.Second) / float64(l.limit)).Round(time.Second)
}
