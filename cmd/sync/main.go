// Package main provides a CLI tool for running sync flows on demand.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/deck-tracker/internal/adapter"
	"github.com/deck-tracker/internal/config"
	"github.com/deck-tracker/internal/logging"
	"github.com/deck-tracker/internal/models"
	"github.com/deck-tracker/internal/service"
	"github.com/deck-tracker/internal/storage"
	"github.com/deck-tracker/internal/types"
)

type syncFlow struct {
	source types.SyncSource
	run    func(ctx context.Context, opts service.SyncOptions) (*service.SyncResult, error)
}

func main() {
	var (
		source = flag.String("source", "all", "Sync source: games, ratings, prices, all")
		limit  = flag.Int("limit", 0, "Maximum app ids to process per source (0 = no cap)")
		ids    = flag.String("ids", "", "Comma-separated app ids to sync instead of the stored catalog")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)
	logger := logging.GetGlobalLogger()

	appIDs, err := parseIDs(*ids)
	if err != nil {
		log.Fatalf("Invalid -ids value: %v", err)
	}

	if err := storage.RunMigrations(cfg.Database.Path, cfg.Database.MigrationsPath); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	db, err := storage.NewDB(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	defer func() { _ = db.Close() }()

	gameRepo := storage.NewGameRepository(db)
	ratingRepo := storage.NewRatingRepository(db)
	priceRepo := storage.NewPriceRepository(db)
	statusRepo := storage.NewSyncStatusRepository(db)

	flows, err := buildFlows(cfg, *source, gameRepo, ratingRepo, priceRepo, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := service.SyncOptions{Limit: *limit, AppIDs: appIDs}

	anyFailed := false
	for _, flow := range flows {
		result, err := flow.run(ctx, opts)
		if err != nil {
			fmt.Printf("%-8s error: %v\n", flow.source, err)
			anyFailed = true
			recordStatus(statusRepo, flow.source, &service.SyncResult{Source: flow.source}, logger, true)
			continue
		}

		fmt.Printf("%-8s %s: %d updated, %d skipped, %d failed in %s\n",
			flow.source, result.Status(), result.Succeeded, result.Skipped, result.Failed, result.Duration.Round(time.Millisecond))

		recordStatus(statusRepo, flow.source, result, logger, false)
		if result.Failed > 0 {
			anyFailed = true
		}
	}

	if anyFailed {
		os.Exit(1)
	}
}

func buildFlows(cfg *config.Config, source string, gameRepo *storage.GameRepository, ratingRepo *storage.RatingRepository, priceRepo *storage.PriceRepository, logger *logging.Logger) ([]syncFlow, error) {
	var flows []syncFlow

	wants := func(s string) bool { return source == "all" || source == s }

	if wants("games") {
		svc := service.NewGameSyncService(gameRepo, adapter.NewSteamClient(&cfg.Steam), logger)
		flows = append(flows, syncFlow{source: types.SourceGames, run: svc.SyncAll})
	}
	if wants("ratings") {
		svc := service.NewRatingSyncService(ratingRepo, adapter.NewProtonDBClient(&cfg.ProtonDB), cfg.Sync.RatingMaxAge, logger)
		flows = append(flows, syncFlow{source: types.SourceRatings, run: svc.SyncAll})
	}
	if wants("prices") {
		itadClient, err := adapter.NewITADClient(&cfg.ITAD)
		if err != nil {
			return nil, fmt.Errorf("prices sync unavailable: %w", err)
		}
		svc := service.NewPriceSyncService(gameRepo, priceRepo, itadClient, cfg.Sync.HistoryRetention, logger)
		flows = append(flows, syncFlow{source: types.SourcePrices, run: svc.SyncAll})
	}

	if len(flows) == 0 {
		return nil, fmt.Errorf("unknown source %q (want games, ratings, prices or all)", source)
	}
	return flows, nil
}

func recordStatus(statusRepo *storage.SyncStatusRepository, source types.SyncSource, result *service.SyncResult, logger *logging.Logger, failed bool) {
	status := result.Status()
	if failed {
		status = models.SyncStatusFailed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := statusRepo.Upsert(ctx, &models.SyncStatus{
		Source:      source,
		LastSyncAt:  time.Now().UTC(),
		Status:      status,
		RecordCount: result.Succeeded,
	})
	if err != nil {
		logger.WithError(err).WithField("source", string(source)).Error("Failed to record sync status")
	}
}

func parseIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}

	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%q is not a valid app id", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
