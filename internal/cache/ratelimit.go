package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// sendGuardPrefix is the Redis key prefix for per-destination send buckets.
	sendGuardPrefix = "sendguard:"
	// sendGuardTTL is the TTL for send guard keys.
	sendGuardTTL = 120 * time.Second
)

// SendGuardResult contains the result of a send guard check.
type SendGuardResult struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// tokenBucketScript is a Lua script implementing the token bucket algorithm.
// It's atomic and handles token refill and consumption in a single operation.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])      -- tokens per second
	local burst = tonumber(ARGV[2])     -- max tokens (bucket capacity)
	local now = tonumber(ARGV[3])       -- current time in seconds
	local ttl = tonumber(ARGV[4])       -- TTL in seconds

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	local elapsed = math.max(0, now - last_update)
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_after = 0

	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// AllowSend consumes one token from the destination's bucket.
// perMinute <= 0 disables the guard. Redis errors fail open so a cache
// outage never blocks a safety notification.
func (c *Cache) AllowSend(ctx context.Context, destination string, perMinute int) (*SendGuardResult, error) {
	if perMinute <= 0 {
		return &SendGuardResult{Allowed: true, Remaining: -1}, nil
	}

	key := sendGuardPrefix + hashDestination(destination)
	rate := float64(perMinute) / 60.0
	now := time.Now().Unix()

	result, err := tokenBucketScript.Run(ctx, c.client,
		[]string{key},
		rate, perMinute, now, int(sendGuardTTL.Seconds()),
	).Int64Slice()
	if err != nil {
		return &SendGuardResult{Allowed: true, Remaining: int64(perMinute)}, err
	}

	return &SendGuardResult{
		Allowed:    result[0] == 1,
		RetryAfter: time.Duration(result[1]) * time.Second,
		Remaining:  result[2],
	}, nil
}

// hashDestination keeps raw phone numbers out of Redis keys.
func hashDestination(destination string) string {
	hash := sha256.Sum256([]byte(destination))
	return hex.EncodeToString(hash[:8])
}
