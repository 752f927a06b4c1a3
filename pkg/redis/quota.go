package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// QuotaLimiter implements sliding window quota tracking using Redis.
// Free-tier provider quotas (e.g. Alpha Vantage 25 req/day) span process
// restarts and close-interval scheduled runs, so the window lives in Redis
// rather than process memory.
// ⭐ SSOT: 프로바이더 쿼터 추적은 여기서만
type QuotaLimiter struct {
	client *Client
	prefix string
}

// QuotaConfig defines quota parameters for one provider
type QuotaConfig struct {
	Key    string        // Provider identifier (e.g. "fred", "alphavantage")
	Limit  int           // Maximum requests allowed
	Window time.Duration // Time window
}

// NewQuotaLimiter creates a new quota limiter
func NewQuotaLimiter(client *Client, prefix string) *QuotaLimiter {
	return &QuotaLimiter{
		client: client,
		prefix: prefix,
	}
}

// Allow checks if a request is allowed under the quota.
// Returns (allowed, remaining, error).
func (q *QuotaLimiter) Allow(ctx context.Context, cfg QuotaConfig) (bool, int, error) {
	if !q.client.Enabled() {
		// Without Redis we cannot track cross-run quotas; allow everything
		return true, cfg.Limit, nil
	}

	key := fmt.Sprintf("%s:quota:%s", q.prefix, cfg.Key)
	now := time.Now().UnixMilli()
	windowStart := now - cfg.Window.Milliseconds()

	rdb := q.client.Redis()

	// Lua script keeps remove-count-add atomic under concurrent fetches
	script := redis.NewScript(`
		local key = KEYS[1]
		local now = tonumber(ARGV[1])
		local window_start = tonumber(ARGV[2])
		local limit = tonumber(ARGV[3])
		local window_ms = tonumber(ARGV[4])

		redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

		local count = redis.call('ZCARD', key)

		if count < limit then
			redis.call('ZADD', key, now, now)
			redis.call('PEXPIRE', key, window_ms)
			return {1, limit - count - 1}
		else
			return {0, 0}
		end
	`)

	result, err := script.Run(ctx, rdb, []string{key},
		now,
		windowStart,
		cfg.Limit,
		cfg.Window.Milliseconds(),
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("quota script failed: %w", err)
	}

	allowed := result[0].(int64) == 1
	remaining := int(result[1].(int64))

	return allowed, remaining, nil
}

// Predefined quota configs for external APIs (free-tier limits, conservative)
var (
	// FRED: 120 req/min documented limit
	FREDQuota = QuotaConfig{
		Key:    "fred",
		Limit:  100,
		Window: time.Minute,
	}

	// Finnhub free tier: 60 req/min
	FinnhubQuota = QuotaConfig{
		Key:    "finnhub",
		Limit:  50,
		Window: time.Minute,
	}

	// Alpha Vantage free tier: 25 req/day
	AlphaVantageQuota = QuotaConfig{
		Key:    "alphavantage",
		Limit:  25,
		Window: 24 * time.Hour,
	}

	// Marketaux free tier: 100 req/day
	MarketauxQuota = QuotaConfig{
		Key:    "marketaux",
		Limit:  100,
		Window: 24 * time.Hour,
	}
)
