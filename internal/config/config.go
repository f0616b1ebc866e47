package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported database drivers.
const (
	DatabaseDriverPostgres = "postgres"
	DatabaseDriverSQLite   = "sqlite"
)

// Supported ban rate limiter backends.
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// Config holds runtime configuration values for the ledger service.
type Config struct {
	AppName              string
	AppEnv               string
	AppPort              string
	DatabaseDriver       string
	DatabaseURL          string
	RedisURL             string
	NatsURL              string
	EventChannel         string
	JWTSecret            string
	RequiredHWIDMatches  int
	BanRateLimitMax      int
	BanRateLimitWindow   time.Duration
	BanRateLimitBackend  string
	SearchPageSize       int
	SearchMaxPageSize    int
	StatsCacheTTL        time.Duration
	SearchRequestsPerMin int
	AccessLog            bool
	PlayerSyncEnabled    bool
	PlayerSyncToken      string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LEDGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Action Ledger")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.access_log", false)
	v.SetDefault("database.driver", DatabaseDriverPostgres)
	v.SetDefault("event.channel", "ledger")
	v.SetDefault("hwid.required_matches", 1)
	v.SetDefault("ban_rate_limit.max", 3)
	v.SetDefault("ban_rate_limit.window", "30m")
	v.SetDefault("ban_rate_limit.backend", RateLimitBackendMemory)
	v.SetDefault("search.page_size", 100)
	v.SetDefault("search.max_page_size", 500)
	v.SetDefault("search.requests_per_minute", 120)
	v.SetDefault("stats.cache_ttl", "5m")
	v.SetDefault("player_sync.enabled", false)

	window, err := parseDuration(v.GetString("ban_rate_limit.window"), 30*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid ban rate limit window: %w", err)
	}
	ttl, err := parseDuration(v.GetString("stats.cache_ttl"), 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid stats cache ttl: %w", err)
	}

	cfg := Config{
		AppName:              v.GetString("app.name"),
		AppEnv:               v.GetString("app.env"),
		AppPort:              v.GetString("app.port"),
		DatabaseDriver:       strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
		DatabaseURL:          v.GetString("database.url"),
		RedisURL:             v.GetString("redis.url"),
		NatsURL:              v.GetString("nats.url"),
		EventChannel:         v.GetString("event.channel"),
		JWTSecret:            v.GetString("jwt.secret"),
		RequiredHWIDMatches:  v.GetInt("hwid.required_matches"),
		BanRateLimitMax:      v.GetInt("ban_rate_limit.max"),
		BanRateLimitWindow:   window,
		BanRateLimitBackend:  strings.ToLower(strings.TrimSpace(v.GetString("ban_rate_limit.backend"))),
		SearchPageSize:       v.GetInt("search.page_size"),
		SearchMaxPageSize:    v.GetInt("search.max_page_size"),
		StatsCacheTTL:        ttl,
		SearchRequestsPerMin: v.GetInt("search.requests_per_minute"),
		AccessLog:            v.GetBool("app.access_log"),
		PlayerSyncEnabled:    v.GetBool("player_sync.enabled"),
		PlayerSyncToken:      v.GetString("player_sync.token"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.DatabaseDriver {
	case DatabaseDriverPostgres, DatabaseDriverSQLite:
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	switch cfg.BanRateLimitBackend {
	case RateLimitBackendMemory:
	case RateLimitBackendRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("redis ban rate limiter requires LEDGER_REDIS_URL")
		}
	default:
		return Config{}, fmt.Errorf("unsupported ban rate limit backend %q", cfg.BanRateLimitBackend)
	}

	if cfg.PlayerSyncEnabled && strings.TrimSpace(cfg.PlayerSyncToken) == "" {
		return Config{}, fmt.Errorf("player sync requires LEDGER_PLAYER_SYNC_TOKEN")
	}

	if cfg.RequiredHWIDMatches < 0 {
		cfg.RequiredHWIDMatches = 0
	}
	if cfg.BanRateLimitMax <= 0 {
		cfg.BanRateLimitMax = 3
	}
	if cfg.SearchPageSize <= 0 {
		cfg.SearchPageSize = 100
	}
	if cfg.SearchMaxPageSize < cfg.SearchPageSize {
		cfg.SearchMaxPageSize = cfg.SearchPageSize
	}

	return cfg, nil
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}
