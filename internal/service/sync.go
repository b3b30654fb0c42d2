// Package service implements the bulk sync flows that pull game metadata,
// compatibility ratings and prices from their upstream sources into storage.
package service

import (
	"context"
	"time"

	"github.com/deck-tracker/internal/models"
	"github.com/deck-tracker/internal/types"
)

// SyncOptions controls one bulk sync run.
type SyncOptions struct {
	// Limit caps how many app ids are processed; 0 means no cap.
	Limit int
	// AppIDs restricts the run to these ids instead of the stored catalog.
	AppIDs []int64
	// Progress, when set, is called after each processed id.
	Progress types.ProgressFunc
}

// SyncResult summarizes one bulk sync run.
type SyncResult struct {
	Source    types.SyncSource `json:"source"`
	Succeeded int              `json:"succeeded"`
	Skipped   int              `json:"skipped"`
	Failed    int              `json:"failed"`
	Duration  time.Duration    `json:"duration"`
}

// Status maps the run counters onto the audit register status values.
func (r *SyncResult) Status() string {
	switch {
	case r.Failed == 0:
		return models.SyncStatusOK
	case r.Succeeded == 0 && r.Skipped == 0:
		return models.SyncStatusFailed
	default:
		return models.SyncStatusPartial
	}
}

// SteamAPI is the subset of the Steam adapter the game sync needs.
type SteamAPI interface {
	GetAppDetails(ctx context.Context, appID int64) (*models.Game, error)
}

// ProtonDBAPI is the subset of the ProtonDB adapter the rating sync needs.
type ProtonDBAPI interface {
	GetSummary(ctx context.Context, appID int64) (*models.ProtonRating, error)
}

// PriceAPI is the subset of the deals adapter the price sync needs.
type PriceAPI interface {
	FetchPricesForApps(ctx context.Context, appIDs []int64) (map[int64][]*models.Price, error)
}

func reportProgress(opts SyncOptions, current, total int, appID int64, outcome types.SyncOutcome) {
	if opts.Progress != nil {
		opts.Progress(types.ProgressUpdate{
			Current: current,
			Total:   total,
			AppID:   appID,
			Outcome: outcome,
		})
	}
}

func capIDs(ids []int64, limit int) []int64 {
	if limit > 0 && len(ids) > limit {
		return ids[:limit]
	}
	return ids
}
