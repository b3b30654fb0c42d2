package service

import (
	"context"
	"fmt"
	"time"

	"github.com/deck-tracker/internal/logging"
	"github.com/deck-tracker/internal/storage"
	"github.com/deck-tracker/internal/types"
)

// GameSyncService refreshes Steam store metadata for the tracked catalog.
type GameSyncService struct {
	games  *storage.GameRepository
	steam  SteamAPI
	logger *logging.Logger
}

// NewGameSyncService creates a new game sync service
func NewGameSyncService(games *storage.GameRepository, steam SteamAPI, logger *logging.Logger) *GameSyncService {
	return &GameSyncService{
		games:  games,
		steam:  steam,
		logger: logger,
	}
}

// SyncAll refreshes metadata for the requested app ids, or for stored games
// stalest first when none are given. A single failing id never aborts the
// run.
func (s *GameSyncService) SyncAll(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	start := time.Now()

	ids := opts.AppIDs
	if len(ids) == 0 {
		var err error
		ids, err = s.games.ListStale(ctx, 0, opts.Limit)
		if err != nil {
			return nil, fmt.Errorf("failed to select games to sync: %w", err)
		}
	}
	ids = capIDs(ids, opts.Limit)

	result := &SyncResult{Source: types.SourceGames}
	for i, appID := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		outcome := s.syncOne(ctx, appID)
		switch outcome {
		case types.OutcomeUpdated:
			result.Succeeded++
		case types.OutcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
		reportProgress(opts, i+1, len(ids), appID, outcome)
	}

	result.Duration = time.Since(start)
	s.logger.WithFields(map[string]interface{}{
		"source":    string(result.Source),
		"succeeded": result.Succeeded,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
		"duration":  result.Duration.String(),
	}).Info("Game sync finished")

	return result, nil
}

func (s *GameSyncService) syncOne(ctx context.Context, appID int64) types.SyncOutcome {
	game, err := s.steam.GetAppDetails(ctx, appID)
	if err != nil {
		s.logger.WithError(err).WithField("app_id", appID).Warn("Failed to fetch game details")
		return types.OutcomeFailed
	}
	// No usable details: unknown id or not a game-type app.
	if game == nil {
		return types.OutcomeSkipped
	}

	game.LastUpdated = time.Now().UTC()
	if err := s.games.Upsert(ctx, game); err != nil {
		s.logger.WithError(err).WithField("app_id", appID).Error("Failed to store game")
		return types.OutcomeFailed
	}
	return types.OutcomeUpdated
}
