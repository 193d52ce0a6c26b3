package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter provides atomic per-provider send throttling using a
// Redis Lua script. The script checks every window before incrementing
// any counter, which avoids the race a GET, check, INCR sequence has
// when several worker hosts share one provider quota.
type RateLimiter struct {
	redis *redis.Client

	multiLimitScript *redis.Script
	limits           map[string]RateLimit
}

// RateLimit defines send limits for one provider.
type RateLimit struct {
	PerSecond int
	PerMinute int
	Daily     int // 0 = unlimited
}

// DefaultProviderLimits are conservative starting quotas. SES limits
// come from the account's sending rate; the SMS carrier caps hard at
// one message per second per number, so the pool stays well under it.
var DefaultProviderLimits = map[string]RateLimit{
	"ses": {PerSecond: 14, PerMinute: 800, Daily: 50000},
	"sms": {PerSecond: 1, PerMinute: 50, Daily: 5000},
}

// Lua script for atomic multi-window rate limit check.
// Checks all windows BEFORE incrementing so a denial leaves no trace.
const multiLimitLuaScript = `
local secondKey = KEYS[1]
local minuteKey = KEYS[2]
local dailyKey = KEYS[3]
local increment = tonumber(ARGV[1])
local secondLimit = tonumber(ARGV[2])
local minuteLimit = tonumber(ARGV[3])
local dailyLimit = tonumber(ARGV[4])
local secondTTL = tonumber(ARGV[5])
local minuteTTL = tonumber(ARGV[6])
local dailyTTL = tonumber(ARGV[7])

local secCurrent = tonumber(redis.call("GET", secondKey) or "0")
local minCurrent = tonumber(redis.call("GET", minuteKey) or "0")
local dayCurrent = tonumber(redis.call("GET", dailyKey) or "0")

if secCurrent + increment > secondLimit then
    return {0, 1, secCurrent}
end
if minCurrent + increment > minuteLimit then
    return {0, 2, minCurrent}
end
if dailyLimit > 0 and dayCurrent + increment > dailyLimit then
    return {0, 3, dayCurrent}
end

local newSec = redis.call("INCRBY", secondKey, increment)
if newSec == increment then
    redis.call("EXPIRE", secondKey, secondTTL)
end

local newMin = redis.call("INCRBY", minuteKey, increment)
if newMin == increment then
    redis.call("EXPIRE", minuteKey, minuteTTL)
end

local newDay = redis.call("INCRBY", dailyKey, increment)
if newDay == increment then
    redis.call("EXPIRE", dailyKey, dailyTTL)
end

return {1, 0, newDay}
`

// NewRateLimiter creates a rate limiter with a pre-compiled Lua script
// and the default provider limits.
func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{
		redis:            redisClient,
		multiLimitScript: redis.NewScript(multiLimitLuaScript),
		limits:           DefaultProviderLimits,
	}
}

// NewRateLimiterFromURL creates a rate limiter by connecting to Redis.
func NewRateLimiterFromURL(redisURL string) (*RateLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log.Printf("[RateLimiter] Connected to Redis")

	return NewRateLimiter(client), nil
}

// SetLimit overrides the limits for one provider.
func (r *RateLimiter) SetLimit(provider string, limit RateLimit) {
	r.limits[provider] = limit
}

// CheckAndIncrement atomically checks and increments the provider's
// rate limit counters. When denied, waitTime suggests how long to back
// off before retrying.
func (r *RateLimiter) CheckAndIncrement(ctx context.Context, provider string, count int) (allowed bool, waitTime time.Duration, err error) {
	limits, ok := r.limits[provider]
	if !ok {
		// Unknown providers are not throttled.
		return true, 0, nil
	}

	now := time.Now()

	secondKey := fmt.Sprintf("notify:ratelimit:%s:sec:%d", provider, now.Unix())
	minuteKey := fmt.Sprintf("notify:ratelimit:%s:min:%d", provider, now.Unix()/60)
	dailyKey := fmt.Sprintf("notify:ratelimit:%s:day:%s", provider, now.Format("2006-01-02"))

	result, err := r.multiLimitScript.Run(ctx, r.redis,
		[]string{secondKey, minuteKey, dailyKey},
		count,
		limits.PerSecond,
		limits.PerMinute,
		limits.Daily,
		2,     // second TTL
		120,   // minute TTL
		90000, // daily TTL (25 hours)
	).Slice()

	if err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}

	allowedInt := result[0].(int64)
	denialReason := result[1].(int64)

	allowed = allowedInt == 1

	if !allowed {
		switch denialReason {
		case 1: // second limit
			waitTime = time.Second
		case 2: // minute limit
			waitTime = time.Duration(60-now.Second()) * time.Second
		case 3: // daily limit
			return false, 0, fmt.Errorf("daily send limit exceeded for %s", provider)
		}
	}

	return allowed, waitTime, nil
}

// CurrentUsage returns current counter values and limits for a provider.
func (r *RateLimiter) CurrentUsage(ctx context.Context, provider string) (map[string]int64, error) {
	now := time.Now()

	secondKey := fmt.Sprintf("notify:ratelimit:%s:sec:%d", provider, now.Unix())
	minuteKey := fmt.Sprintf("notify:ratelimit:%s:min:%d", provider, now.Unix()/60)
	dailyKey := fmt.Sprintf("notify:ratelimit:%s:day:%s", provider, now.Format("2006-01-02"))

	pipe := r.redis.Pipeline()
	secCmd := pipe.Get(ctx, secondKey)
	minCmd := pipe.Get(ctx, minuteKey)
	dayCmd := pipe.Get(ctx, dailyKey)
	pipe.Exec(ctx)

	sec, _ := secCmd.Int64()
	min, _ := minCmd.Int64()
	day, _ := dayCmd.Int64()

	limits := r.limits[provider]

	return map[string]int64{
		"second_current": sec,
		"second_limit":   int64(limits.PerSecond),
		"minute_current": min,
		"minute_limit":   int64(limits.PerMinute),
		"daily_current":  day,
		"daily_limit":    int64(limits.Daily),
	}, nil
}

// Close closes the Redis connection.
func (r *RateLimiter) Close() error {
	return r.redis.Close()
}
