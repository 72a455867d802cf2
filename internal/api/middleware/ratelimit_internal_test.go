package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"greendrake/localboard/internal/config"
)

func TestRateLimiterSweep(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rm := NewRateLimiterMiddleware(&config.Config{RateLimitHardBucketSize: 1, RateLimitSoftBucketSize: 1}, zap.NewNop())
	rm.now = func() time.Time { return now }

	rm.limiterFor("old")
	now = now.Add(limiterIdleTTL)
	rm.limiterFor("fresh")
	now = now.Add(time.Minute)

	assert.Equal(t, 1, rm.sweep())
	assert.Contains(t, rm.clients, "fresh")
	assert.NotContains(t, rm.clients, "old")
}
