package httpx

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/firekit/pkg/slogx"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// RateLimitConfig allows Requests per Window with bursts of up to Burst.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Burst    int
}

// RateLimitFromEnv overrides def with RATELIMIT_<prefix>_REQUESTS,
// _WINDOW_SEC and _BURST where they are set to positive integers.
func RateLimitFromEnv(prefix string, def RateLimitConfig) RateLimitConfig {
	cfg := def

	positive := func(name string) (int, bool) {
		v, err := strconv.Atoi(os.Getenv("RATELIMIT_" + prefix + "_" + name))
		return v, err == nil && v > 0
	}

	if n, ok := positive("REQUESTS"); ok {
		cfg.Requests = n
	}
	if n, ok := positive("WINDOW_SEC"); ok {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := positive("BURST"); ok {
		cfg.Burst = n
	}
	return cfg
}

// KeyFunc groups requests that share a budget.
type KeyFunc func(*http.Request) string

// ClientIP is the first X-Forwarded-For hop, then X-Real-IP, then the
// remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Idle limiters are dropped at most this often.
const sweepInterval = 5 * time.Minute

// Limiter hands out one token bucket per key.
type Limiter struct {
	cfg   RateLimitConfig
	clock clockwork.Clock

	mu        sync.Mutex
	buckets   map[string]*rate.Limiter
	lastSweep time.Time
}

// NewLimiter creates a Limiter; a nil clock means the real one.
func NewLimiter(cfg RateLimitConfig, clock clockwork.Clock) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.Requests
	}
	return &Limiter{
		cfg:       cfg,
		clock:     clock,
		buckets:   make(map[string]*rate.Limiter),
		lastSweep: clock.Now(),
	}
}

// Allow spends one token of key's budget. When it is empty the second
// return is how long until the next token.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= sweepInterval {
		// A full bucket has not been touched for a while
		for k, b := range l.buckets {
			if b.TokensAt(now) >= float64(l.cfg.Burst) {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		every := rate.Every(l.cfg.Window / time.Duration(max(l.cfg.Requests, 1)))
		b = rate.NewLimiter(every, l.cfg.Burst)
		l.buckets[key] = b
	}

	if b.AllowN(now, 1) {
		return true, 0
	}

	r := b.ReserveN(now, 1)
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	return false, wait
}

// Len is the number of keys being tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimit rejects requests over budget with 429 and Retry-After.
// Requests key cannot place are let through.
func RateLimit(l *Limiter, key KeyFunc) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := l.Allow(k)
			if !ok {
				retryAfter := max(int((wait+time.Second-1)/time.Second), 1)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				slogx.FromContext(r.Context()).Warn("rate limit exceeded",
					"key", k, "path", r.URL.Path, "retry_after", retryAfter)

				WriteError(w, http.StatusTooManyRequests, "QUOTA_EXCEEDED", "too many requests, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
