package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(clock.Now)

	assert.True(t, l.Allow("a", "x", 100*time.Millisecond))
	assert.False(t, l.Allow("a", "x", 100*time.Millisecond))

	clock.Advance(50 * time.Millisecond)
	assert.False(t, l.Allow("a", "x", 100*time.Millisecond), "rejection must not reset the window")

	clock.Advance(51 * time.Millisecond)
	assert.True(t, l.Allow("a", "x", 100*time.Millisecond))
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(clock.Now)

	assert.True(t, l.Allow("a", "x", time.Second))
	assert.True(t, l.Allow("a", "y", time.Second))
	assert.True(t, l.Allow("b", "x", time.Second))
	assert.False(t, l.Allow("b", "x", time.Second))
	assert.Equal(t, 3, l.Len())
}

func TestRateLimiter_PurgeOlderThan(t *testing.T) {
	tests := []struct {
		name      string
		interval  time.Duration
		age       time.Duration
		maxAge    time.Duration
		wantPurge int
	}{
		{name: "old entry purged", interval: 100 * time.Millisecond, age: 61 * time.Second, maxAge: time.Minute, wantPurge: 1},
		{name: "recent entry kept", interval: 100 * time.Millisecond, age: 30 * time.Second, maxAge: time.Minute, wantPurge: 0},
		{name: "entry still throttling kept", interval: 2 * time.Minute, age: 61 * time.Second, maxAge: time.Minute, wantPurge: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			l := NewRateLimiter(clock.Now)
			l.Allow("a", "x", tt.interval)
			clock.Advance(tt.age)

			assert.Equal(t, tt.wantPurge, l.PurgeOlderThan(tt.maxAge))
			assert.Equal(t, 1-tt.wantPurge, l.Len())
		})
	}
}

func TestRateLimiter_PurgeKeepsThrottleDecision(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(clock.Now)
	l.Allow("a", "x", 2*time.Minute)
	clock.Advance(90 * time.Second)
	l.PurgeOlderThan(time.Minute)

	assert.False(t, l.Allow("a", "x", 2*time.Minute))
}
