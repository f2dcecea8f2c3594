package middleware

import (
	"net/http"

	"github.com/handoff/handoff-server/internal/audit"
	"github.com/handoff/handoff-server/internal/service"
)

// NewIPRateLimitMiddleware limits unauthenticated surfaces, such as portal
// token resolution, per client IP.
func NewIPRateLimitMiddleware(limiter Limiter, bucket string, limit service.Limit) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		bucket:  bucket,
		limit:   limit,
		keyFunc: func(r *http.Request) string {
			return "ip:" + audit.ClientIP(r)
		},
	}
}
