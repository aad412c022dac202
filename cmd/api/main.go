package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-ledger/config"
	httpHandler "wallet-ledger/internal/adapter/http/handler"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/adapter/messaging/rabbitmq"
	"wallet-ledger/internal/adapter/storage/memory"
	pgStorage "wallet-ledger/internal/adapter/storage/postgres"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := ""
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("store", cfg.Ledger.Store).
		Int("port", cfg.Server.Port).
		Msg("Starting Wallet Ledger")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		store     ports.Store
		auditRepo ports.AuditRepository
		checkers  []ports.HealthChecker
	)

	switch cfg.Ledger.Store {
	case "postgres":
		if cfg.Database.AutoMigrate {
			if err := pgStorage.Migrate(cfg.Database.DSN(), log); err != nil {
				log.Fatal().Err(err).Msg("Failed to migrate database")
			}
		}

		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		log.Info().Msg("PostgreSQL connected")

		store = pgStorage.NewStore(pool, cfg.Ledger.LockTimeout)
		auditRepo = pgStorage.NewAuditRepository(pool)
		checkers = append(checkers, pgStorage.NewHealthCheck(pool))
	default:
		store = memory.New(memory.WithLockTimeout(cfg.Ledger.LockTimeout))
		log.Warn().Msg("Using in-memory ledger store; data is lost on restart")
	}

	var (
		cache          ports.WalletCache
		locker         ports.Locker
		rateLimitStore *redisStorage.RateLimitStore
	)

	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		cache = redisStorage.NewWalletCache(rdb, cfg.Ledger.CacheTTL, logger.Component(log, "wallet-cache"))
		locker = redisStorage.NewLocker(rdb, logger.Component(log, "locker"))
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		checkers = append(checkers, redisStorage.NewHealthCheck(rdb))
	}

	hooks := []ports.CommitHook{service.NewAuditService(auditRepo, logger.Component(log, "audit"))}
	if cache != nil {
		hooks = append(hooks, service.NewCacheInvalidator(cache, logger.Component(log, "cache-invalidator")))
	}

	if cfg.Events.AMQPURL != "" {
		publisher, err := rabbitmq.Dial(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close event publisher")
			}
		}()
		hooks = append(hooks, service.NewPublishHook(publisher, logger.Component(log, "publisher")))
		log.Info().Str("exchange", cfg.Events.Exchange).Msg("RabbitMQ publisher ready")
	}

	retry := service.RetryPolicy{
		MaxAttempts: cfg.Ledger.MaxAttempts,
		Backoff:     cfg.Ledger.RetryBackoff,
	}
	ledgerSvc := service.NewReconciler(store, retry, logger.Component(log, "reconciler"), hooks...)
	walletSvc := service.NewWalletService(store, cache, retry, logger.Component(log, "wallet-service"), hooks...)

	if cfg.Ledger.SweepInterval > 0 {
		sweeper := service.NewDriftSweeper(store, ledgerSvc, locker, cfg.Ledger.SweepInterval, cfg.Ledger.SweepLockTTL, logger.Component(log, "drift-sweeper"))
		go sweeper.Run(ctx)
	}

	specBytes, err := os.ReadFile("docs/api/openapi.yaml")
	if err == nil {
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	rateLimits := middleware.RulesFromConfig(cfg.RateLimit)
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		LedgerSvc:      ledgerSvc,
		RateLimitStore: rateLimitStore,
		RateLimits:     &rateLimits,
		HealthCheckers: checkers,
		OpenAPISpec:    specBytes,
		Logger:         logger.Component(log, "http"),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
