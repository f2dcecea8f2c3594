package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/handoff/handoff-server/internal/audit"
	apperrors "github.com/handoff/handoff-server/internal/errors"
	"github.com/handoff/handoff-server/internal/service"
)

type Limiter interface {
	Check(ctx context.Context, bucket, id string, limit service.Limit) service.Decision
}

// RateLimitMiddleware counts requests per caller in a shared Redis sliding window.
type RateLimitMiddleware struct {
	limiter Limiter
	bucket  string
	limit   service.Limit
	keyFunc func(*http.Request) string
}

// NewUserRateLimitMiddleware limits per signed-in owner, falling back to the
// client IP before authentication has run.
func NewUserRateLimitMiddleware(limiter Limiter, bucket string, limit service.Limit) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		bucket:  bucket,
		limit:   limit,
		keyFunc: func(r *http.Request) string {
			if scope, ok := GetScope(r.Context()); ok {
				return "user:" + scope.OwnerUserID
			}
			return "ip:" + audit.ClientIP(r)
		},
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := m.keyFunc(r)
		decision := m.limiter.Check(r.Context(), m.bucket, id, m.limit)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			log.Warn().Str("bucket", m.bucket).Str("key", id).Msg("rate limit exceeded")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]interface{}{"bucket": m.bucket},
			})
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSeconds(decision.ResetAt)))
			writeError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(resetAt time.Time) int {
	secs := int(time.Until(resetAt).Seconds()) + 1
	if secs < 1 {
		return 1
	}
	return secs
}
