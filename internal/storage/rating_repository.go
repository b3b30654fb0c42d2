package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/deck-tracker/internal/models"
)

// RatingRepository handles ProtonDB compatibility rating persistence
type RatingRepository struct {
	db *DB
}

// NewRatingRepository creates a new rating repository
func NewRatingRepository(db *DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Upsert inserts or updates a rating keyed by app id
func (r *RatingRepository) Upsert(ctx context.Context, rating *models.ProtonRating) error {
	query := `
		INSERT INTO proton_ratings (
			app_id, tier, confidence, score, total_reports, trending_tier, last_updated
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(app_id) DO UPDATE SET
			tier = excluded.tier,
			confidence = excluded.confidence,
			score = excluded.score,
			total_reports = excluded.total_reports,
			trending_tier = excluded.trending_tier,
			last_updated = excluded.last_updated
	`

	_, err := r.db.SQL().ExecContext(ctx, query,
		rating.AppID,
		string(rating.Tier),
		rating.Confidence,
		rating.Score,
		rating.TotalReports,
		rating.TrendingTier,
		rating.LastUpdated.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert rating for %d: %w", rating.AppID, err)
	}
	return nil
}

// GetByAppID retrieves a rating by app id, or nil when absent.
func (r *RatingRepository) GetByAppID(ctx context.Context, appID int64) (*models.ProtonRating, error) {
	query := `
		SELECT app_id, tier, confidence, score, total_reports, trending_tier, last_updated
		FROM proton_ratings
		WHERE app_id = ?
	`

	var rating models.ProtonRating
	err := r.db.SQL().QueryRowContext(ctx, query, appID).Scan(
		&rating.AppID,
		&rating.Tier,
		&rating.Confidence,
		&rating.Score,
		&rating.TotalReports,
		&rating.TrendingTier,
		&rating.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rating for %d: %w", appID, err)
	}
	return &rating, nil
}

// ListStale returns app ids of games whose rating is missing or older than
// the cutoff. Games without any rating come first so new titles get covered
// before refreshes.
func (r *RatingRepository) ListStale(ctx context.Context, maxAge time.Duration, limit int) ([]int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	query := `
		SELECT g.app_id
		FROM games g
		LEFT JOIN proton_ratings r ON r.app_id = g.app_id
		WHERE r.app_id IS NULL OR r.last_updated < ?
		ORDER BY r.last_updated IS NOT NULL, r.last_updated ASC
	`
	args := []interface{}{cutoff}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale ratings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan app id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TierCount is one bucket of the tier distribution
type TierCount struct {
	Tier  string `json:"tier"`
	Count int    `json:"count"`
}

// TierDistribution returns how many rated games fall into each tier,
// largest bucket first.
func (r *RatingRepository) TierDistribution(ctx context.Context) ([]*TierCount, error) {
	query := `
		SELECT tier, COUNT(*) AS n
		FROM proton_ratings
		GROUP BY tier
		ORDER BY n DESC, tier ASC
	`

	rows, err := r.db.SQL().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tier distribution: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []*TierCount
	for rows.Next() {
		var tc TierCount
		if err := rows.Scan(&tc.Tier, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan tier count: %w", err)
		}
		counts = append(counts, &tc)
	}
	return counts, rows.Err()
}
