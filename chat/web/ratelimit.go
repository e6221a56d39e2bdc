package web

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/time/rate"
)

// idle limiters are evicted after this period
const limiterIdle = 30 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is a keyed rate limiter, one rate.Limiter per client
type Limiter struct {
	mu          sync.Mutex
	entries     map[string]*limiterEntry
	rate        rate.Limit
	burst       int
	lastCleanup time.Time
}

// NewLimiter returns Limiter allowing perMinute requests with the burst
func NewLimiter(perMinute float64, burst int) *Limiter {
	return &Limiter{
		entries:     make(map[string]*limiterEntry),
		rate:        rate.Limit(perMinute / 60.0),
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

// Allow returns true if a request for the key is allowed
func (l *Limiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	if now.Sub(l.lastCleanup) > limiterIdle {
		cutoff := now.Add(-limiterIdle)
		for k, e := range l.entries {
			if e.lastSeen.Before(cutoff) {
				delete(l.entries, k)
			}
		}
		l.lastCleanup = now
	}
	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	return e.limiter.Allow()
}

// Middleware returns a huma middleware that limits the requests by client IP
func (l *Limiter) Middleware(api huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if !l.Allow(clientIP(ctx)) {
			_ = huma.WriteErr(api, ctx, 429, "Rate limit exceeded. Try again shortly.")
			return
		}
		next(ctx)
	}
}

// clientIP returns X-Real-IP set by the proxy, or the remote address without port
func clientIP(ctx huma.Context) string {
	if realIP := ctx.Header("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	addr := ctx.RemoteAddr()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
