package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsWithinRate(t *testing.T) {
	l := newRateLimiter(5)
	now := time.Now()
	ip := net.ParseIP("10.0.0.1")

	for i := 0; i < 5; i++ {
		assert.True(t, l.allow(ip, now), "request %d should be allowed", i)
	}
	assert.False(t, l.allow(ip, now), "bucket should be exhausted")
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	l := newRateLimiter(2)
	now := time.Now()
	ip := net.ParseIP("10.0.0.2")

	assert.True(t, l.allow(ip, now))
	assert.True(t, l.allow(ip, now))
	assert.False(t, l.allow(ip, now))

	later := now.Add(time.Second)
	assert.True(t, l.allow(ip, later), "one second at rate=2 should refill at least one token")
}

func TestRateLimiterPerPeerIsolation(t *testing.T) {
	l := newRateLimiter(1)
	now := time.Now()
	a := net.ParseIP("10.0.0.3")
	b := net.ParseIP("10.0.0.4")

	assert.True(t, l.allow(a, now))
	assert.False(t, l.allow(a, now))
	assert.True(t, l.allow(b, now), "a separate peer must have its own bucket")
}

func TestRateLimiterEvictsIdleBuckets(t *testing.T) {
	l := newRateLimiter(1)
	now := time.Now()
	a := net.ParseIP("10.0.0.5")
	b := net.ParseIP("10.0.0.6")

	l.allow(a, now)
	l.allow(b, now.Add(idleEvictAfter+time.Second))

	l.mu.Lock()
	_, stillPresent := l.buckets[a.String()]
	l.mu.Unlock()
	assert.False(t, stillPresent, "bucket idle beyond idleEvictAfter should be reclaimed")
}
