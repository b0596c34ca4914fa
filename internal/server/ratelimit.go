package server

import (
	"net"
	"sync"
	"time"
)

// bucket is a per-peer token bucket: tokens accrue continuously at the
// configured rate up to the configured capacity.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// idleEvictAfter is how long an untouched bucket survives before the
// limiter reclaims it.
const idleEvictAfter = 5 * time.Minute

// rateLimiter guards the bucket map with a lock held only for the map
// operation itself, never across I/O.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens/s, also the bucket capacity
}

func newRateLimiter(ratePerSecond float64) *rateLimiter {
	return &rateLimiter{
		buckets: make(map[string]*bucket),
		rate:    ratePerSecond,
	}
}

// allow consumes one token for ip if available, refilling first. It also
// opportunistically evicts buckets idle for idleEvictAfter.
func (l *rateLimiter) allow(ip net.IP, now time.Time) bool {
	key := ip.String()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.rate, lastRefill: now}
		l.buckets[key] = b
	} else {
		elapsed := now.Sub(b.lastRefill).Seconds()
		b.tokens += elapsed * l.rate
		if b.tokens > l.rate {
			b.tokens = l.rate
		}
		b.lastRefill = now
	}

	if len(l.buckets) > 1 {
		l.evictLocked(now)
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// evictLocked removes buckets untouched for idleEvictAfter. Caller must
// hold l.mu.
func (l *rateLimiter) evictLocked(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.lastRefill) >= idleEvictAfter {
			delete(l.buckets, k)
		}
	}
}
