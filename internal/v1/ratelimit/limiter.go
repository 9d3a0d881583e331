// Package ratelimit rate-limits the management HTTP surface using Redis (or
// an in-memory fallback) behind a circuit breaker, so the management API
// degrades to fail-open rather than wedging when Redis is unavailable.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nullboard/roomd/internal/v1/auth"
	"github.com/nullboard/roomd/internal/v1/config"
	"github.com/nullboard/roomd/internal/v1/logging"
	"github.com/nullboard/roomd/internal/v1/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// TokenValidator abstracts management-token validation so tests can supply a
// fake without a real shared secret.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.ManagementClaims, error)
}

// RateLimiter enforces a single configured rate per management endpoint,
// keyed by the authenticated operator when a bearer token is present and by
// client IP otherwise.
type RateLimiter struct {
	limiterInst *limiter.Limiter
	store       limiter.Store
	redisClient *redis.Client
	breaker     *gobreaker.CircuitBreaker
	validator   TokenValidator
}

// NewRateLimiter builds a RateLimiter backed by redisClient, or an in-memory
// store when redisClient is nil (e.g. local dev without Redis).
func NewRateLimiter(cfg *config.Config, redisClient *redis.Client, validator TokenValidator) (*RateLimiter, error) {
	rate, err := limiter.NewRateFromFormatted(cfg.RateLimitManagementAPI)
	if err != nil {
		return nil, fmt.Errorf("invalid management API rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{
			Prefix: "roomd:ratelimit:",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "rate limiter using Redis store")
	} else {
		store = memory.NewStore()
		logging.Warn(context.Background(), "rate limiter using memory store (Redis disabled)")
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ratelimit-store",
		MaxRequests: 5,
		Timeout:     10 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &RateLimiter{
		limiterInst: limiter.New(store, rate),
		store:       store,
		redisClient: redisClient,
		breaker:     breaker,
		validator:   validator,
	}, nil
}

// keyFor returns the rate-limit bucket key for a request: the operator
// subject if a valid bearer token is present, otherwise the client IP.
func (rl *RateLimiter) keyFor(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		claims, err := rl.validator.ValidateToken(authHeader[7:])
		if err == nil {
			return "operator:" + claims.Subject
		}
	}
	return "ip:" + c.ClientIP()
}

// MiddlewareForEndpoint returns Gin middleware enforcing the configured rate
// for one management endpoint class.
func (rl *RateLimiter) MiddlewareForEndpoint(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := endpoint + ":" + rl.keyFor(c)

		result, err := rl.breaker.Execute(func() (any, error) {
			return rl.limiterInst.Get(c.Request.Context(), key)
		})
		if err != nil {
			// Redis down, or breaker open: fail open rather than block
			// the management API entirely.
			metrics.CircuitBreakerFailures.WithLabelValues("ratelimit-store").Inc()
			logging.Error(c.Request.Context(), "rate limiter store failed, failing open", zap.String("endpoint", endpoint), zap.Error(err))
			c.Next()
			return
		}
		lctx := result.(limiter.Context)

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			metrics.RateLimitExceeded.WithLabelValues(endpoint, "rate_exceeded").Inc()
			c.Header("Retry-After", strconv.FormatInt(lctx.Reset-time.Now().Unix(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many requests",
				"retry_after": lctx.Reset,
			})
			return
		}

		metrics.RateLimitRequests.WithLabelValues(endpoint).Inc()
		c.Next()
	}
}
