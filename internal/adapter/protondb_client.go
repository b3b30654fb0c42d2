package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deck-tracker/internal/config"
	"github.com/deck-tracker/internal/fetch"
	"github.com/deck-tracker/internal/models"
	"github.com/deck-tracker/internal/types"
)

// ProtonDBClient fetches Steam Deck compatibility summaries from ProtonDB.
type ProtonDBClient struct {
	baseURL string
	client  *fetch.Client
	policy  fetch.Policy
}

// NewProtonDBClient creates a ProtonDB client with the configured rate limit.
func NewProtonDBClient(cfg *config.ProtonDBConfig) *ProtonDBClient {
	limiter := fetch.NewSlidingWindow(cfg.RequestsPerWindow, cfg.Window)
	return &ProtonDBClient{
		baseURL: cfg.BaseURL,
		client:  fetch.NewClient(limiter),
		policy:  fetch.DefaultPolicy(),
	}
}

type protonSummary struct {
	Tier         string   `json:"tier"`
	Confidence   *string  `json:"confidence"`
	Score        *float64 `json:"score"`
	Total        *int     `json:"total"`
	TrendingTier *string  `json:"trendingTier"`
}

// GetSummary fetches the compatibility summary for one app id. An upstream
// 404 means the game has no rating yet and returns (nil, nil); any other
// failure propagates.
func (c *ProtonDBClient) GetSummary(ctx context.Context, appID int64) (*models.ProtonRating, error) {
	url := fmt.Sprintf("%s/api/v2/reports/summaries/%d.json", c.baseURL, appID)

	var summary protonSummary
	if err := c.client.GetJSON(ctx, url, &summary, c.policy); err != nil {
		if fetch.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("protondb summary %d: %w", appID, err)
	}

	// Tiers are normalized to lower case before storage; the enumeration is
	// enforced at the filter layer, not here.
	rating := &models.ProtonRating{
		AppID:        appID,
		Tier:         types.Tier(strings.ToLower(summary.Tier)),
		Confidence:   summary.Confidence,
		Score:        summary.Score,
		TotalReports: summary.Total,
		TrendingTier: summary.TrendingTier,
		LastUpdated:  time.Now().UTC(),
	}

	if rating.TrendingTier != nil {
		trimmed := strings.ToLower(*rating.TrendingTier)
		rating.TrendingTier = &trimmed
	}

	return rating, nil
}
