package service

import (
	"context"
	"fmt"
	"time"

	"github.com/deck-tracker/internal/logging"
	"github.com/deck-tracker/internal/models"
	"github.com/deck-tracker/internal/storage"
	"github.com/deck-tracker/internal/types"
)

// priceSyncChunkSize bounds how many games go through one fetch+store cycle,
// so a late failure only loses one chunk of work.
const priceSyncChunkSize = 100

// PriceSyncService refreshes store prices for paid games and maintains the
// price history log.
type PriceSyncService struct {
	games     *storage.GameRepository
	prices    *storage.PriceRepository
	deals     PriceAPI
	retention time.Duration
	logger    *logging.Logger
}

// NewPriceSyncService creates a new price sync service. History snapshots
// older than retention are pruned after each run.
func NewPriceSyncService(games *storage.GameRepository, prices *storage.PriceRepository, deals PriceAPI, retention time.Duration, logger *logging.Logger) *PriceSyncService {
	return &PriceSyncService{
		games:     games,
		prices:    prices,
		deals:     deals,
		retention: retention,
		logger:    logger,
	}
}

// SyncAll fetches current prices for the requested app ids, or for every
// stored paid game when none are given. Games the pricing source does not
// know count as skipped. Each chunk of games is stored in one transaction;
// a failing chunk fails its games but never aborts the run.
func (s *PriceSyncService) SyncAll(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	start := time.Now()

	ids := opts.AppIDs
	if len(ids) == 0 {
		var err error
		ids, err = s.games.ListAppIDs(ctx, true, opts.Limit)
		if err != nil {
			return nil, fmt.Errorf("failed to select games to price: %w", err)
		}
	}
	ids = capIDs(ids, opts.Limit)

	result := &SyncResult{Source: types.SourcePrices}
	processed := 0
	for chunkStart := 0; chunkStart < len(ids); chunkStart += priceSyncChunkSize {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		end := chunkStart + priceSyncChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[chunkStart:end]

		s.syncChunk(ctx, chunk, opts, &processed, len(ids), result)
	}

	if pruned, err := s.prices.PruneHistory(ctx, time.Now().UTC().Add(-s.retention)); err != nil {
		s.logger.WithError(err).Warn("Failed to prune price history")
	} else if pruned > 0 {
		s.logger.WithField("rows", pruned).Info("Pruned price history")
	}

	result.Duration = time.Since(start)
	s.logger.WithFields(map[string]interface{}{
		"source":    string(result.Source),
		"succeeded": result.Succeeded,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
		"duration":  result.Duration.String(),
	}).Info("Price sync finished")

	return result, nil
}

func (s *PriceSyncService) syncChunk(ctx context.Context, chunk []int64, opts SyncOptions, processed *int, total int, result *SyncResult) {
	byApp, err := s.deals.FetchPricesForApps(ctx, chunk)
	if err != nil {
		s.logger.WithError(err).WithField("games", len(chunk)).Warn("Failed to fetch prices for chunk")
		for _, appID := range chunk {
			result.Failed++
			*processed++
			reportProgress(opts, *processed, total, appID, types.OutcomeFailed)
		}
		return
	}

	now := time.Now().UTC()
	var batch []*models.Price
	for _, rows := range byApp {
		for _, price := range rows {
			price.LastUpdated = now
			batch = append(batch, price)
		}
	}

	if err := s.prices.UpsertBatch(ctx, batch); err != nil {
		s.logger.WithError(err).WithField("rows", len(batch)).Error("Failed to store price batch")
		for _, appID := range chunk {
			result.Failed++
			*processed++
			reportProgress(opts, *processed, total, appID, types.OutcomeFailed)
		}
		return
	}

	for _, appID := range chunk {
		outcome := types.OutcomeSkipped
		if len(byApp[appID]) > 0 {
			outcome = types.OutcomeUpdated
			result.Succeeded++
		} else {
			result.Skipped++
		}
		*processed++
		reportProgress(opts, *processed, total, appID, outcome)
	}
}
