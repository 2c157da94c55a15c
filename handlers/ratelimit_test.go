package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Disabled(t *testing.T) {
	l := NewRateLimiter(0)
	assert.Nil(t, l)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("u"))
	}
	assert.Zero(t, l.Tracked())
}

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewRateLimiter(2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("u"))
	assert.True(t, l.Allow("u"))
	assert.False(t, l.Allow("u"))
	assert.True(t, l.Allow("other"), "limits are per user")

	now = now.Add(30 * time.Second)
	assert.True(t, l.Allow("u"))
	assert.False(t, l.Allow("u"))
}

func TestRateLimiter_SweepsIdleUsers(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewRateLimiter(6)
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 2, l.Tracked())

	now = now.Add(visitorTTL + time.Minute)
	l.Allow("c")
	assert.Equal(t, 1, l.Tracked())
}
