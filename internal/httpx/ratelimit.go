package httpx

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiter *rate.Limiter
	last    time.Time
}

// RateLimiter hands out one token bucket per client IP. Idle buckets are
// swept on the request path.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	idle  time.Duration

	mu        sync.Mutex
	limiters  map[string]*ipLimiter
	lastSweep time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:       rate.Limit(rps),
		burst:     burst,
		idle:      30 * time.Minute,
		limiters:  map[string]*ipLimiter{},
		lastSweep: time.Now(),
	}
}

func (l *RateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if now.Sub(l.lastSweep) > 5*time.Minute {
		for k, v := range l.limiters {
			if now.Sub(v.last) > l.idle {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}
	il, ok := l.limiters[ip]
	if !ok {
		il = &ipLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[ip] = il
	}
	il.last = now
	return il.limiter.Allow()
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(remoteIP(r)) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
