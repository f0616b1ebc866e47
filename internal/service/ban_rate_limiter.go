package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/action-ledger/internal/observability"
)

const (
	defaultBanRateLimit  = 3
	defaultBanRateWindow = 30 * time.Minute
	banRateKeyPrefix     = "ratelimit:ban:"
)

// BanRateLimiter caps how many bans a single admin may issue in a trailing window.
type BanRateLimiter interface {
	Allow(ctx context.Context, adminName string) bool
}

// BanRateLimiterConfig configures both limiter backends.
type BanRateLimiterConfig struct {
	Max    int
	Window time.Duration
	Now    func() time.Time
}

func (c BanRateLimiterConfig) withDefaults() BanRateLimiterConfig {
	if c.Max <= 0 {
		c.Max = defaultBanRateLimit
	}
	if c.Window <= 0 {
		c.Window = defaultBanRateWindow
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// MemoryBanRateLimiter keeps a sliding window of ban timestamps per admin in process memory.
type MemoryBanRateLimiter struct {
	mu      sync.Mutex
	history map[string][]time.Time
	config  BanRateLimiterConfig
	logger  zerolog.Logger
}

// NewMemoryBanRateLimiter constructs the in-process limiter.
func NewMemoryBanRateLimiter(config BanRateLimiterConfig, logger zerolog.Logger) *MemoryBanRateLimiter {
	return &MemoryBanRateLimiter{
		history: make(map[string][]time.Time),
		config:  config.withDefaults(),
		logger:  logger.With().Str("component", "ban_rate_limiter").Logger(),
	}
}

// Allow prunes entries older than the window and records now unless the admin is at the limit.
func (l *MemoryBanRateLimiter) Allow(_ context.Context, adminName string) bool {
	now := l.config.Now()
	cutoff := now.Add(-l.config.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.history[adminName][:0]
	for _, ts := range l.history[adminName] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.config.Max {
		l.history[adminName] = kept
		l.logger.Warn().Str("admin", adminName).Int("limit", l.config.Max).Msg("ban rate limit exceeded")
		observability.BanRateLimited().WithLabelValues("memory").Inc()
		return false
	}

	l.history[adminName] = append(kept, now)
	return true
}

// KEYS[1] = per-admin sorted set; ARGV = now ms, window ms, max, member.
var banRateScript = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1] - ARGV[2])
local count = redis.call("ZCARD", KEYS[1])
if count >= tonumber(ARGV[3]) then
  return 0
end
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return 1
`)

// RedisBanRateLimiter shares the sliding window across replicas through a Redis sorted set.
type RedisBanRateLimiter struct {
	client *redis.Client
	config BanRateLimiterConfig
	logger zerolog.Logger
}

// NewRedisBanRateLimiter constructs the shared limiter.
func NewRedisBanRateLimiter(client *redis.Client, config BanRateLimiterConfig, logger zerolog.Logger) (*RedisBanRateLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisBanRateLimiter{
		client: client,
		config: config.withDefaults(),
		logger: logger.With().Str("component", "ban_rate_limiter").Logger(),
	}, nil
}

// Allow runs prune, count and record atomically. Redis failures fail open.
func (l *RedisBanRateLimiter) Allow(ctx context.Context, adminName string) bool {
	now := l.config.Now().UnixMilli()
	window := l.config.Window.Milliseconds()

	result, err := banRateScript.Run(ctx, l.client, []string{banRateKeyPrefix + adminName},
		now, window, l.config.Max, uuid.NewString()).Int64()
	if err != nil {
		l.logger.Error().Err(err).Str("admin", adminName).Msg("ban rate limiter unavailable, allowing")
		return true
	}

	if result == 0 {
		l.logger.Warn().Str("admin", adminName).Int("limit", l.config.Max).Msg("ban rate limit exceeded")
		observability.BanRateLimited().WithLabelValues("redis").Inc()
		return false
	}
	return true
}
