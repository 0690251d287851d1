// file: internal/middleware/rate_limiter.go
package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bridgeus/internal/cache"
	"bridgeus/internal/response"

	"go.uber.org/zap"
)

// RateLimiterConfig holds rate limiting configuration
type RateLimiterConfig struct {
	Enabled        bool          `json:"enabled"`
	FailureMode    string        `json:"failure_mode"` // "allow", "deny"
	HeadersEnabled bool          `json:"headers_enabled"`
	Limit          int           `json:"limit"`
	Window         time.Duration `json:"window"`
	// KeyPrefix separates limits of different route groups
	KeyPrefix string `json:"key_prefix"`
}

// DefaultRateLimiterConfig returns the general API limit
func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		Enabled:        true,
		FailureMode:    "allow",
		HeadersEnabled: true,
		Limit:          600,
		Window:         time.Minute,
		KeyPrefix:      "api",
	}
}

// AuthRateLimiterConfig is the stricter limit for sign-in and sign-up
func AuthRateLimiterConfig() *RateLimiterConfig {
	cfg := DefaultRateLimiterConfig()
	cfg.Limit = 20
	cfg.Window = 15 * time.Minute
	cfg.KeyPrefix = "auth"
	return cfg
}

// RateLimitResult represents the result of rate limit check
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// RateLimiter counts requests per client in fixed windows stored in the
// cache, so limits hold across instances when the cache is redis
type RateLimiter struct {
	config *RateLimiterConfig
	cache  cache.Cache
	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiter creates a rate limiter
func NewRateLimiter(config *RateLimiterConfig, c cache.Cache, logger *zap.Logger) *RateLimiter {
	if config == nil {
		config = DefaultRateLimiterConfig()
	}
	return &RateLimiter{config: config, cache: c, logger: logger, now: time.Now}
}

// Middleware enforces the limit, keyed by user id when authenticated and by
// client ip otherwise
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !rl.config.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := rl.check(r)
			if err != nil {
				GetRequestLogger(r.Context()).Warn("Rate limiter unavailable",
					zap.String("failure_mode", rl.config.FailureMode),
					zap.Error(err),
				)
				if rl.config.FailureMode == "deny" {
					response.GetBuilderOrDefault(r.Context()).WriteTooManyRequests(w, r, rl.config.Window)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if rl.config.HeadersEnabled {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))
			}

			if !result.Allowed {
				GetRequestLogger(r.Context()).Info("Rate limit exceeded", zap.String("limit_key", rl.config.KeyPrefix))
				response.GetBuilderOrDefault(r.Context()).WriteTooManyRequests(w, r, result.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) check(r *http.Request) (*RateLimitResult, error) {
	now := rl.now()
	window := now.Truncate(rl.config.Window)
	reset := window.Add(rl.config.Window)

	subject := "ip:" + ClientIP(r)
	if userID := GetUserID(r.Context()); userID != "" {
		subject = "user:" + userID
	}
	key := fmt.Sprintf("ratelimit:%s:%s:%d", rl.config.KeyPrefix, subject, window.Unix())

	count, err := rl.cache.Increment(r.Context(), key, 1, rl.config.Window)
	if err != nil {
		return nil, err
	}

	remaining := rl.config.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return &RateLimitResult{
		Allowed:    int(count) <= rl.config.Limit,
		Limit:      rl.config.Limit,
		Remaining:  remaining,
		ResetTime:  reset,
		RetryAfter: reset.Sub(now),
	}, nil
}
