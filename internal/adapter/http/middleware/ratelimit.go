package middleware

import (
	"strconv"
	"time"

	"wallet-ledger/config"
	redisStore "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Endpoint groups. Reads and ledger writes are counted separately.
const (
	GroupRead  = "read"
	GroupWrite = "write"
)

// RateLimitRule is the number of requests a client may make per window.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// RateLimitRules holds one rule per endpoint group.
type RateLimitRules struct {
	Read  RateLimitRule
	Write RateLimitRule
}

// RulesFromConfig converts the rate_limit config section into rules.
func RulesFromConfig(cfg config.RateLimitConfig) RateLimitRules {
	return RateLimitRules{
		Read:  RateLimitRule{Limit: cfg.ReadLimit, Window: cfg.Window},
		Write: RateLimitRule{Limit: cfg.WriteLimit, Window: cfg.Window},
	}
}

// DefaultRateLimitRules matches the config defaults.
func DefaultRateLimitRules() RateLimitRules {
	return RulesFromConfig(config.RateLimitConfig{ReadLimit: 300, WriteLimit: 120, Window: time.Minute})
}

// RateLimiter counts requests per client IP within group. A nil store turns
// it into a pass-through and a failing store lets the request proceed.
func RateLimiter(store *redisStore.RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	if store == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		result, err := store.Allow(c.Request.Context(), c.ClientIP()+":"+group, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit store unavailable, request allowed")
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if result.Allowed {
			c.Next()
			return
		}

		h.Set("Retry-After", strconv.FormatInt(max(result.ResetAt-time.Now().Unix(), 1), 10))
		response.Error(c, apperror.ErrRateLimitExceeded())
		c.Abort()
	}
}
