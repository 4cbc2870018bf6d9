package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter buckets requests per client address. Each bucket holds up to
// burst tokens and refills at perSecond; a request spends one token.
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*tokenBucket
	perSecond  float64
	burst      float64
	trustProxy bool
}

type tokenBucket struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter creates a limiter refilling perSecond tokens up to burst.
// trustProxy comes from configuration and decides whether proxy headers
// identify the client.
func NewRateLimiter(perSecond float64, burst int, trustProxy bool) *RateLimiter {
	rl := &RateLimiter{
		buckets:    make(map[string]*tokenBucket),
		perSecond:  perSecond,
		burst:      float64(burst),
		trustProxy: trustProxy,
	}
	go rl.sweep()
	return rl
}

// Allow reports whether a request from ip may proceed. When denied, the
// duration says how long until the bucket holds a full token again.
func (rl *RateLimiter) Allow(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &tokenBucket{tokens: rl.burst}
		rl.buckets[ip] = b
	} else {
		b.tokens = math.Min(rl.burst, b.tokens+now.Sub(b.seen).Seconds()*rl.perSecond)
	}
	b.seen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	return false, time.Duration((1 - b.tokens) / rl.perSecond * float64(time.Second))
}

// Middleware rejects over-limit requests with 429 and a Retry-After derived
// from the bucket refill rate.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.Allow(rl.ClientIP(r))
		if !ok {
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "limite de requisições excedido, tente novamente em instantes",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP resolves the caller address for bucketing. X-Forwarded-For and
// X-Real-IP count only when the limiter was configured to trust the proxy.
func (rl *RateLimiter) ClientIP(r *http.Request) string {
	if rl.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if idx := strings.Index(xff, ","); idx > 0 {
				return strings.TrimSpace(xff[:idx])
			}
			return strings.TrimSpace(xff)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx > 0 {
		ip = ip[:idx]
	}
	return ip
}

// sweep drops buckets idle for more than ten minutes.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-10 * time.Minute)
		for ip, b := range rl.buckets {
			if b.seen.Before(cutoff) {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}
