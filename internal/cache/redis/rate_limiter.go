package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/polyredeem/internal/domain"
	"github.com/alanyoungcy/polyredeem/internal/ratelimit"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowLua prunes, checks both caps and records in one round trip.
// Scores are microsecond timestamps; members are unique per call.
//
// KEYS[1] = zset key
// ARGV    = now, window, limit, burstWindow, burst, member
// returns {allowed, retryAfterMicros}
const slidingWindowLua = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local burstWindow = tonumber(ARGV[4])
local burst = tonumber(ARGV[5])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    return {0, tonumber(oldest[2]) + window - now}
end

if burst > 0 then
    local recent = redis.call('ZRANGEBYSCORE', key, string.format('(%.0f', now - burstWindow), '+inf', 'WITHSCORES')
    if #recent / 2 >= burst then
        return {0, tonumber(recent[2]) + burstWindow - now}
    end
end

redis.call('ZADD', key, now, ARGV[6])
redis.call('PEXPIRE', key, math.ceil(window / 1000))
return {1, 0}
`

const minRetryWait = 10 * time.Millisecond

// RateLimiter implements domain.RateLimiter on a Redis sorted set so several
// processes redeeming for the same wallet share one budget.
type RateLimiter struct {
	rdb           *redis.Client
	key           string
	cfg           ratelimit.Config
	slidingWindow *redis.Script
	now           func() time.Time
}

// NewRateLimiter creates a RateLimiter for the budget named key.
func NewRateLimiter(c *Client, key string, cfg ratelimit.Config) *RateLimiter {
	return &RateLimiter{
		rdb:           c.Underlying(),
		key:           c.key("ratelimit", key),
		cfg:           cfg.Normalize(),
		slidingWindow: redis.NewScript(slidingWindowLua),
		now:           time.Now,
	}
}

// TryAcquire records a call and returns true if the budget allows it now.
func (rl *RateLimiter) TryAcquire(ctx context.Context) (bool, error) {
	ok, _, err := rl.try(ctx)
	return ok, err
}

// Acquire blocks until a call is allowed, sleeping for the retry hint the
// script returns. It returns an error if ctx ends or Redis fails.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	for {
		ok, wait, err := rl.try(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if wait < minRetryWait {
			wait = minRetryWait
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis: rate limit wait %s: %w", rl.key, ctx.Err())
		case <-timer.C:
		}
	}
}

func (rl *RateLimiter) try(ctx context.Context) (bool, time.Duration, error) {
	result, err := rl.slidingWindow.Run(
		ctx,
		rl.rdb,
		[]string{rl.key},
		rl.now().UnixMicro(),
		rl.cfg.Window.Microseconds(),
		rl.cfg.Limit,
		rl.cfg.BurstWindow.Microseconds(),
		rl.cfg.Burst,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("redis: rate limit %s: %w", rl.key, err)
	}
	if len(result) < 2 {
		return false, 0, fmt.Errorf("redis: rate limit %s: unexpected result length %d", rl.key, len(result))
	}
	return result[0] == 1, time.Duration(result[1]) * time.Microsecond, nil
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
