package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"greendrake/localboard/internal/config"
)

const (
	limiterIdleTTL     = 30 * time.Minute
	limiterSweepPeriod = 10 * time.Minute
)

// clientLimiter stores the buckets of one client.
type clientLimiter struct {
	writeLimiter *rate.Limiter
	hardLimiter  *rate.Limiter
	lastSeen     time.Time
}

// RateLimiterMiddleware limits requests per client IP. Every request draws
// from the hard bucket; writes (flags, comments, likes, votes) also draw
// from the smaller soft bucket.
type RateLimiterMiddleware struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	cfg     *config.Config
	log     *zap.Logger
	now     func() time.Time
}

func NewRateLimiterMiddleware(cfg *config.Config, log *zap.Logger) *RateLimiterMiddleware {
	return &RateLimiterMiddleware{
		clients: make(map[string]*clientLimiter),
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// Run evicts idle clients until ctx is done.
func (rm *RateLimiterMiddleware) Run(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rm.sweep(); n > 0 {
				rm.log.Debug("rate limiter evicted idle clients", zap.Int("count", n))
			}
		}
	}
}

func (rm *RateLimiterMiddleware) sweep() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	count := 0
	for id, client := range rm.clients {
		if rm.now().Sub(client.lastSeen) > limiterIdleTTL {
			delete(rm.clients, id)
			count++
		}
	}
	return count
}

func (rm *RateLimiterMiddleware) limiterFor(identifier string) *clientLimiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	limiter, exists := rm.clients[identifier]
	if !exists {
		limiter = &clientLimiter{
			writeLimiter: rate.NewLimiter(rate.Limit(rm.cfg.RateLimitSoftRefillRate), rm.cfg.RateLimitSoftBucketSize),
			hardLimiter:  rate.NewLimiter(rate.Limit(rm.cfg.RateLimitHardRefillRate), rm.cfg.RateLimitHardBucketSize),
		}
		rm.clients[identifier] = limiter
	}
	limiter.lastSeen = rm.now()
	return limiter
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// Limit creates the Gin middleware handler.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := c.ClientIP()
		limiter := rm.limiterFor(clientKey)

		if !limiter.hardLimiter.Allow() {
			rm.reject(c, clientKey, limiter.hardLimiter)
			return
		}
		if isWrite(c.Request.Method) && !limiter.writeLimiter.Allow() {
			rm.reject(c, clientKey, limiter.writeLimiter)
			return
		}
		c.Next()
	}
}

func (rm *RateLimiterMiddleware) reject(c *gin.Context, clientKey string, l *rate.Limiter) {
	retryAfter := 1
	if l.Limit() > 0 {
		retryAfter = int(math.Ceil(1 / float64(l.Limit())))
	}
	rm.log.Info("rate limit exceeded",
		zap.String("client", clientKey),
		zap.String("method", c.Request.Method),
		zap.String("route", c.FullPath()),
	)
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
}
