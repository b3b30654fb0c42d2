// Package main provides the API server entry point for the deck tracker
// service.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/deck-tracker/internal/adapter"
	"github.com/deck-tracker/internal/api"
	"github.com/deck-tracker/internal/config"
	"github.com/deck-tracker/internal/job"
	"github.com/deck-tracker/internal/logging"
	"github.com/deck-tracker/internal/service"
	"github.com/deck-tracker/internal/storage"
	"github.com/deck-tracker/internal/types"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)
	logger := logging.GetGlobalLogger()

	if err := storage.RunMigrations(cfg.Database.Path, cfg.Database.MigrationsPath); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	db, err := storage.NewDB(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	defer func() { _ = db.Close() }()

	// Response caching is optional; the server runs without Redis.
	var cacheService *storage.CacheService
	if cfg.Redis.Addr != "" {
		redisCache, err := storage.NewRedisCache(&cfg.Redis)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer func() { _ = redisCache.Close() }()
		cacheService = storage.NewCacheService(redisCache, cfg.Redis.TTL)
		logger.WithField("addr", cfg.Redis.Addr).Info("Response cache enabled")
	}

	gameRepo := storage.NewGameRepository(db)
	ratingRepo := storage.NewRatingRepository(db)
	priceRepo := storage.NewPriceRepository(db)
	bundleRepo := storage.NewBundleRepository(db)
	statusRepo := storage.NewSyncStatusRepository(db)

	steamClient := adapter.NewSteamClient(&cfg.Steam)
	protonClient := adapter.NewProtonDBClient(&cfg.ProtonDB)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gameSync := service.NewGameSyncService(gameRepo, steamClient, logger)
	ratingSync := service.NewRatingSyncService(ratingRepo, protonClient, cfg.Sync.RatingMaxAge, logger)

	scheduler := job.NewScheduler(statusRepo, cacheService, logger, ctx)
	if err := scheduler.Add(cfg.Sync.GamesCron, types.SourceGames, gameSync); err != nil {
		logger.WithError(err).Fatal("Failed to schedule game sync")
	}
	if err := scheduler.Add(cfg.Sync.RatingsCron, types.SourceRatings, ratingSync); err != nil {
		logger.WithError(err).Fatal("Failed to schedule rating sync")
	}

	// Price sync needs an ITAD key; without one the server still serves
	// whatever prices are already stored.
	itadClient, err := adapter.NewITADClient(&cfg.ITAD)
	if err != nil {
		logger.WithError(err).Warn("Price sync disabled")
	} else {
		priceSync := service.NewPriceSyncService(gameRepo, priceRepo, itadClient, cfg.Sync.HistoryRetention, logger)
		if err := scheduler.Add(cfg.Sync.PricesCron, types.SourcePrices, priceSync); err != nil {
			logger.WithError(err).Fatal("Failed to schedule price sync")
		}
	}

	scheduler.Start()
	defer scheduler.Stop()

	server := api.NewServer(
		&api.ServerConfig{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitRPS:    cfg.RateLimit.RequestsPerSecond,
			RateLimitBurst:  cfg.RateLimit.Burst,
		},
		db, gameRepo, ratingRepo, priceRepo, bundleRepo, statusRepo, cacheService, logger,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Fatal("Server failed")
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Graceful shutdown failed")
		}
	}
}
