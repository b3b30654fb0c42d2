package models

import (
	"time"

	"github.com/deck-tracker/internal/types"
)

// ProtonRating represents a ProtonDB compatibility summary for one game
type ProtonRating struct {
	AppID        int64      `json:"appId" db:"app_id"`
	Tier         types.Tier `json:"tier" db:"tier"`
	Confidence   *string    `json:"confidence,omitempty" db:"confidence"`
	Score        *float64   `json:"score,omitempty" db:"score"`
	TotalReports *int       `json:"totalReports,omitempty" db:"total_reports"`
	TrendingTier *string    `json:"trendingTier,omitempty" db:"trending_tier"`
	LastUpdated  time.Time  `json:"lastUpdated" db:"last_updated"`
}
