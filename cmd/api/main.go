package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/action-ledger/internal/config"
	"github.com/noah-isme/action-ledger/internal/database"
	"github.com/noah-isme/action-ledger/internal/handler"
	"github.com/noah-isme/action-ledger/internal/middleware"
	"github.com/noah-isme/action-ledger/internal/repository"
	"github.com/noah-isme/action-ledger/internal/router"
	"github.com/noah-isme/action-ledger/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NatsURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NatsURL, cfg.AppName, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	actionRepo := repository.NewActionRepository(db)
	playerRepo := repository.NewPlayerRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	var dispatcher service.EffectDispatcher = service.NewLogEffectDispatcher(logger)
	if redisClient != nil || natsConn != nil {
		dispatcher = service.NewBrokerEffectDispatcher(redisClient, cfg.EventChannel, natsConn, logger)
	}

	limiterConfig := service.BanRateLimiterConfig{Max: cfg.BanRateLimitMax, Window: cfg.BanRateLimitWindow}
	var banLimiter service.BanRateLimiter = service.NewMemoryBanRateLimiter(limiterConfig, logger)
	if cfg.BanRateLimitBackend == config.RateLimitBackendRedis {
		banLimiter, err = service.NewRedisBanRateLimiter(redisClient, limiterConfig, logger)
		if err != nil {
			log.Fatalf("failed to create ban rate limiter: %v", err)
		}
	}

	activityService := service.NewActivityService(activityRepo, logger)
	ledgerService := service.NewActionLedgerService(actionRepo, playerRepo, nil, validate, activityService,
		service.LedgerConfig{RequiredHWIDMatches: cfg.RequiredHWIDMatches}, logger)
	revocationService := service.NewRevocationService(actionRepo, playerRepo, dispatcher, activityService, logger)
	searchService := service.NewActionSearchService(actionRepo, service.SearchConfig{
		DefaultLimit: cfg.SearchPageSize,
		MaxLimit:     cfg.SearchMaxPageSize,
	}, logger)
	statsService := service.NewActionStatsService(actionRepo, playerRepo, redisClient, cfg.StatsCacheTTL, logger)
	playerSyncService := service.NewPlayerSyncService(playerRepo, validate, cfg.PlayerSyncEnabled, cfg.PlayerSyncToken, logger)

	probes, err := healthProbes(db, redisClient, natsConn)
	if err != nil {
		log.Fatalf("failed to build health probes: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AccessLog})
	router.Register(app, cfg, router.Dependencies{
		ActionHandler:     handler.NewActionHandler(ledgerService, revocationService, banLimiter, logger),
		HistoryHandler:    handler.NewHistoryHandler(searchService, ledgerService, validate, logger),
		StatsHandler:      handler.NewStatsHandler(statsService, logger),
		AdminLogHandler:   handler.NewAdminLogHandler(activityService, logger),
		PlayerSyncHandler: handler.NewPlayerSyncHandler(playerSyncService, logger),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		HealthProbes:      probes,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("addr", cfg.HTTPAddress()).Str("database", cfg.DatabaseDriver).Msg("action ledger started")
	waitForShutdown(app)
}

func healthProbes(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) ([]handler.HealthProbe, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	probes := []handler.HealthProbe{{Name: "database", Check: sqlDB.PingContext}}

	redisProbe := handler.HealthProbe{Name: "redis"}
	if redisClient != nil {
		redisProbe.Check = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	natsProbe := handler.HealthProbe{Name: "nats"}
	if natsConn != nil {
		natsProbe.Check = func(context.Context) error {
			if !natsConn.IsConnected() {
				return fmt.Errorf("nats %s", natsConn.Status())
			}
			return nil
		}
	}

	return append(probes, redisProbe, natsProbe), nil
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
