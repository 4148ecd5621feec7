package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindow trims entries older than the window, then admits the request
// when fewer than limit remain. Returns {allowed, count}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, 0, window_start)
local current = redis.call('ZCARD', key)
if current < limit then
	redis.call('ZADD', key, now, now)
	redis.call('EXPIRE', key, ttl)
	return {1, current + 1}
end
return {0, current}
`)

// Redis is a sliding window limiter shared through Redis
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

var _ Limiter = (*Redis)(nil)

// NewRedis creates a limiter over an existing client. Keys are stored under prefix.
func NewRedis(client *redis.Client, limit int, window time.Duration, prefix string) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if err := validate(limit, window); err != nil {
		return nil, err
	}
	return &Redis{client: client, limit: limit, window: window, prefix: prefix, now: time.Now}, nil
}

// Allow records one request for key if it fits in the window
func (r *Redis) Allow(ctx context.Context, key string) (*Decision, error) {
	now := r.now()
	ttl := int(r.window.Seconds())
	if ttl < 1 {
		ttl = 1
	}

	res, err := slidingWindow.Run(ctx, r.client, []string{r.prefix + key},
		now.UnixNano(), now.Add(-r.window).UnixNano(), r.limit, ttl).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("rate limit check returned %d values", len(res))
	}

	return &Decision{
		Limit:     r.limit,
		Remaining: max(0, r.limit-int(res[1])),
		ResetAt:   now.Add(r.window),
		Allowed:   res[0] == 1,
	}, nil
}

// Reset forgets every request recorded for key
func (r *Redis) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
