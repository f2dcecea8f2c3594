package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisclient "github.com/handoff/handoff-server/internal/redis"
)

// rateLimitScript is a Lua script for sliding window rate limiting.
// Returns {allowed, resetAt, remaining}.
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local windowStart = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)

local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = now + window
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    end
    return {0, resetAt, 0}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('EXPIRE', key, window + 10)

return {1, now + window, limit - count - 1}
`)

// Limit is a number of requests per sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

func PerMinute(n int) Limit {
	return Limit{Requests: n, Window: time.Minute}
}

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter provides Redis-backed sliding window limits shared by all instances.
type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Check records one request against bucket/id. A Redis failure denies the request.
func (rl *RateLimiter) Check(ctx context.Context, bucket, id string, limit Limit) Decision {
	now := time.Now().Unix()
	key := redisclient.RateLimitKey(bucket, id)

	result, err := rateLimitScript.Run(
		ctx,
		rl.client,
		[]string{key},
		now,
		int64(limit.Window.Seconds()),
		limit.Requests,
	).Int64Slice()

	if err != nil || len(result) != 3 {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("rate limit check failed, denying request for safety")
		return Decision{Allowed: false, Limit: limit.Requests, ResetAt: time.Now().Add(limit.Window)}
	}

	return Decision{
		Allowed:   result[0] == 1,
		Limit:     limit.Requests,
		Remaining: int(result[2]),
		ResetAt:   time.Unix(result[1], 0),
	}
}
