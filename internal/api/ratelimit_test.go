package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_LimitPerPrincipal(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	assert.True(t, rl.Allow("okta"))
	assert.True(t, rl.Allow("okta"))
	assert.False(t, rl.Allow("okta"))

	// Principals are limited independently.
	assert.True(t, rl.Allow("entra"))
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)
	defer rl.Stop()

	assert.True(t, rl.Allow("okta"))
	assert.False(t, rl.Allow("okta"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.Allow("okta"))
}
