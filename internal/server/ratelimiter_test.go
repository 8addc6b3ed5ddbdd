package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(5)
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		assert.True(t, rl.CheckLimit("1.2.3.4"))
	}
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	rl := NewRateLimiter(3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.CheckLimit("1.2.3.4"))
	}
	assert.False(t, rl.CheckLimit("1.2.3.4"))
}

func TestRateLimiterIsPerIP(t *testing.T) {
	rl := NewRateLimiter(1)
	defer rl.Stop()

	assert.True(t, rl.CheckLimit("1.1.1.1"))
	assert.False(t, rl.CheckLimit("1.1.1.1"))
	assert.True(t, rl.CheckLimit("2.2.2.2"))
}

func TestRetryAfterForBlockedIP(t *testing.T) {
	rl := NewRateLimiter(1)
	defer rl.Stop()

	assert.Equal(t, 0, rl.GetRetryAfter("1.2.3.4"))

	rl.CheckLimit("1.2.3.4")
	retry := rl.GetRetryAfter("1.2.3.4")
	assert.Greater(t, retry, 0)
	assert.LessOrEqual(t, retry, 60)
}

func TestCleanupDropsIdleIPs(t *testing.T) {
	rl := NewRateLimiter(10)
	defer rl.Stop()

	rl.CheckLimit("1.2.3.4")
	rl.mu.Lock()
	rl.limits["1.2.3.4"].requests = []int64{0} // ancient
	rl.mu.Unlock()

	rl.cleanup()

	rl.mu.RLock()
	_, exists := rl.limits["1.2.3.4"]
	rl.mu.RUnlock()
	assert.False(t, exists)
}
