// Package ratelimit throttles scoring traffic per client IP so one noisy
// integration cannot starve the decision endpoints.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Config sizes the per-client token buckets.
type Config struct {
	RequestsPerMinute int           // sustained refill rate
	BurstSize         int           // bucket capacity
	CleanupInterval   time.Duration // sweep cadence for idle clients
}

// DefaultConfig allows one request per second on average with short bursts.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		BurstSize:         10,
		CleanupInterval:   time.Minute,
	}
}

// bucket is one client's token state.
type bucket struct {
	tokens float64
	seen   time.Time
}

// take refills the bucket for the time elapsed since the last request,
// capped at burst, then spends one token if available.
func (b *bucket) take(now time.Time, ratePerSec, burst float64) bool {
	b.tokens += now.Sub(b.seen).Seconds() * ratePerSec
	if b.tokens > burst {
		b.tokens = burst
	}
	b.seen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Limiter tracks a token bucket per client IP.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
}

// New creates a limiter and starts its idle-client sweeper.
func New(cfg Config) *Limiter {
	l := &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// sweep periodically drops buckets idle long enough to have fully refilled.
func (l *Limiter) sweep() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-2 * time.Minute)
			l.mu.Lock()
			for ip, b := range l.buckets {
				if b.seen.Before(cutoff) {
					delete(l.buckets, ip)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}

// Stop ends the sweeper goroutine.
func (l *Limiter) Stop() {
	close(l.stop)
}

// Allow spends one token from ip's bucket. New clients start with a full
// burst allowance.
func (l *Limiter) Allow(ip string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[ip]
	if !ok {
		l.buckets[ip] = &bucket{tokens: float64(l.cfg.BurstSize) - 1, seen: now}
		return true
	}
	return b.take(now, float64(l.cfg.RequestsPerMinute)/60.0, float64(l.cfg.BurstSize))
}

// Middleware rejects over-limit requests with 429. The decision API is
// unauthenticated, so the client IP is the only stable key.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests. Please slow down.",
				"retry_after": 1,
			})
			return
		}
		c.Next()
	}
}
