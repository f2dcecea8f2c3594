package middleware

import (
	"github.com/handoff/handoff-server/internal/config"
	"github.com/handoff/handoff-server/internal/service"
)

const loginBucket = "login"

// NewLoginRateLimiter slows password guessing on sign-in and sign-up.
func NewLoginRateLimiter(limiter Limiter) *RateLimitMiddleware {
	return NewIPRateLimitMiddleware(limiter, loginBucket, service.PerMinute(config.LoginRateLimitPerMin))
}
