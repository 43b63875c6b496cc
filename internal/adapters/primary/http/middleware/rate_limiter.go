package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"
	"golang.org/x/time/rate"
)

// RateLimiter applies a token bucket per client address. Buckets follow the
// injected clock, so tests can refill them without sleeping.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	ttl      time.Duration
	clock    clock.Clock

	stop     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterConfig holds rate limiter configuration
type RateLimiterConfig struct {
	RequestsPerSecond float64       // Requests allowed per second
	BurstSize         int           // Maximum burst size
	CleanupInterval   time.Duration // How often idle visitors are swept
	TTL               time.Duration // Idle time after which a visitor is forgotten
	Clock             clock.Clock   // Defaults to the wall clock
}

// DefaultRateLimiterConfig returns the budget for the browser-facing API.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		CleanupInterval:   time.Minute,
		TTL:               3 * time.Minute,
	}
}

// WebhookRateLimiterConfig returns a looser config for the webhook endpoint,
// which receives bursts from a single upstream address.
func WebhookRateLimiterConfig(rps float64, burst int) RateLimiterConfig {
	cfg := DefaultRateLimiterConfig()
	cfg.RequestsPerSecond = rps
	cfg.BurstSize = burst
	return cfg
}

// NewRateLimiter creates a rate limiter and starts its sweep loop. Call
// Stop to end the loop.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}

	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.BurstSize,
		ttl:      cfg.TTL,
		clock:    clk,
		stop:     make(chan struct{}),
	}

	go rl.sweepLoop(interval)

	return rl
}

// Allow spends one token from the bucket for key.
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.clock.Now()

	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Sweep forgets visitors idle for longer than the TTL and returns how many
// were removed.
func (rl *RateLimiter) Sweep() int {
	now := rl.clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.ttl {
			delete(rl.visitors, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked visitors.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

func (rl *RateLimiter) sweepLoop(interval time.Duration) {
	for {
		select {
		case <-rl.stop:
			return
		case <-rl.clock.After(interval):
			rl.Sweep()
		}
	}
}

// Stop ends the background sweep loop.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Middleware rejects requests over budget with 429 and a Retry-After hint.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(getClientIP(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Too many requests. Please try again later.","code":"RATE_LIMITED"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client address, preferring proxy headers. Only
// the first hop of X-Forwarded-For is used.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if ip, _, err := net.SplitHostPort(first); err == nil {
			return ip
		}
		if first != "" {
			return first
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
