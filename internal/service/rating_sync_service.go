package service

import (
	"context"
	"fmt"
	"time"

	"github.com/deck-tracker/internal/logging"
	"github.com/deck-tracker/internal/storage"
	"github.com/deck-tracker/internal/types"
)

// RatingSyncService refreshes ProtonDB compatibility ratings.
type RatingSyncService struct {
	ratings *storage.RatingRepository
	proton  ProtonDBAPI
	maxAge  time.Duration
	logger  *logging.Logger
}

// NewRatingSyncService creates a new rating sync service. Ratings older than
// maxAge count as stale and get re-fetched.
func NewRatingSyncService(ratings *storage.RatingRepository, proton ProtonDBAPI, maxAge time.Duration, logger *logging.Logger) *RatingSyncService {
	return &RatingSyncService{
		ratings: ratings,
		proton:  proton,
		maxAge:  maxAge,
		logger:  logger,
	}
}

// SyncAll refreshes ratings for the requested app ids, or for games whose
// rating is missing or stale when none are given.
func (s *RatingSyncService) SyncAll(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	start := time.Now()

	ids := opts.AppIDs
	if len(ids) == 0 {
		var err error
		ids, err = s.ratings.ListStale(ctx, s.maxAge, opts.Limit)
		if err != nil {
			return nil, fmt.Errorf("failed to select ratings to sync: %w", err)
		}
	}
	ids = capIDs(ids, opts.Limit)

	result := &SyncResult{Source: types.SourceRatings}
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
	}).Info("Rating sync finished")

	return result, nil
}

func (s *RatingSyncService) syncOne(ctx context.Context, appID int64) types.SyncOutcome {
	rating, err := s.proton.GetSummary(ctx, appID)
	if err != nil {
		s.logger.WithError(err).WithField("app_id", appID).Warn("Failed to fetch rating")
		return types.OutcomeFailed
	}
	// No report summary yet for this game.
	if rating == nil {
		return types.OutcomeSkipped
	}

	rating.LastUpdated = time.Now().UTC()
	if err := s.ratings.Upsert(ctx, rating); err != nil {
		s.logger.WithError(err).WithField("app_id", appID).Error("Failed to store rating")
		return types.OutcomeFailed
	}
	return types.OutcomeUpdated
}
