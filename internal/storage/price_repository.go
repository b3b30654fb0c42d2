package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/deck-tracker/internal/models"
)

// PriceRepository handles current prices and the price history log
type PriceRepository struct {
	db *DB
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *DB) *PriceRepository {
	return &PriceRepository{db: db}
}

const upsertPriceQuery = `
	INSERT INTO prices (
		app_id, store, price, discount_percent, on_sale, sale_ends_at, url, last_updated
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(app_id, store) DO UPDATE SET
		price = excluded.price,
		discount_percent = excluded.discount_percent,
		on_sale = excluded.on_sale,
		sale_ends_at = excluded.sale_ends_at,
		url = excluded.url,
		last_updated = excluded.last_updated
`

const insertHistoryQuery = `
	INSERT INTO price_history (app_id, store, price, discount_percent, recorded_at)
	VALUES (?, ?, ?, ?, ?)
`

// UpsertBatch writes current prices and appends one history snapshot per row
// in a single transaction, so the current table and the log cannot diverge.
func (r *PriceRepository) UpsertBatch(ctx context.Context, prices []*models.Price) error {
	if len(prices) == 0 {
		return nil
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, price := range prices {
			var saleEndsAt interface{}
			if price.SaleEndsAt != nil {
				saleEndsAt = price.SaleEndsAt.UTC()
			}

			_, err := tx.ExecContext(ctx, upsertPriceQuery,
				price.AppID,
				string(price.Store),
				price.Price,
				price.DiscountPercent,
				price.OnSale,
				saleEndsAt,
				price.URL,
				price.LastUpdated.UTC(),
			)
			if err != nil {
				return fmt.Errorf("failed to upsert price for %d/%s: %w", price.AppID, price.Store, err)
			}

			_, err = tx.ExecContext(ctx, insertHistoryQuery,
				price.AppID,
				string(price.Store),
				price.Price,
				price.DiscountPercent,
				price.LastUpdated.UTC(),
			)
			if err != nil {
				return fmt.Errorf("failed to record price history for %d/%s: %w", price.AppID, price.Store, err)
			}
		}
		return nil
	})
}

// GetByAppID returns the current price rows for a game, cheapest first.
func (r *PriceRepository) GetByAppID(ctx context.Context, appID int64) ([]*models.Price, error) {
	query := `
		SELECT app_id, store, price, discount_percent, on_sale, sale_ends_at, url, last_updated
		FROM prices
		WHERE app_id = ?
		ORDER BY price ASC, store ASC
	`

	rows, err := r.db.SQL().QueryContext(ctx, query, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to get prices for %d: %w", appID, err)
	}
	defer func() { _ = rows.Close() }()

	var prices []*models.Price
	for rows.Next() {
		var price models.Price
		err := rows.Scan(
			&price.AppID,
			&price.Store,
			&price.Price,
			&price.DiscountPercent,
			&price.OnSale,
			&price.SaleEndsAt,
			&price.URL,
			&price.LastUpdated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		prices = append(prices, &price)
	}
	return prices, rows.Err()
}

// History returns snapshots for a game over the trailing window, newest
// first, optionally restricted to one store.
func (r *PriceRepository) History(ctx context.Context, appID int64, days int, store string) ([]*models.PriceHistoryEntry, error) {
	if days <= 0 {
		days = 90
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	query := `
		SELECT id, app_id, store, price, discount_percent, recorded_at
		FROM price_history
		WHERE app_id = ? AND recorded_at >= ?
	`
	args := []interface{}{appID, cutoff}
	if store != "" {
		query += " AND store = ?"
		args = append(args, store)
	}
	query += " ORDER BY recorded_at DESC, id DESC"

	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get price history for %d: %w", appID, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*models.PriceHistoryEntry
	for rows.Next() {
		var entry models.PriceHistoryEntry
		err := rows.Scan(
			&entry.ID,
			&entry.AppID,
			&entry.Store,
			&entry.Price,
			&entry.DiscountPercent,
			&entry.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// BestDeals returns the deepest current discounts at or above the threshold,
// joined with game names.
func (r *PriceRepository) BestDeals(ctx context.Context, limit, minDiscount int) ([]*models.Deal, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	query := `
		SELECT p.app_id, g.name, p.store, p.price, p.discount_percent, p.sale_ends_at, p.url
		FROM prices p
		JOIN games g ON g.app_id = p.app_id
		WHERE p.discount_percent >= ? AND p.discount_percent > 0
		ORDER BY p.discount_percent DESC, p.price ASC, p.app_id ASC
		LIMIT ?
	`

	rows, err := r.db.SQL().QueryContext(ctx, query, minDiscount, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query best deals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanDeals(rows)
}

// ActiveSales returns on-sale rows whose sale window has not passed as of
// now. Rows without an expiry are treated as still active.
func (r *PriceRepository) ActiveSales(ctx context.Context, now time.Time) ([]*models.Deal, error) {
	query := `
		SELECT p.app_id, g.name, p.store, p.price, p.discount_percent, p.sale_ends_at, p.url
		FROM prices p
		JOIN games g ON g.app_id = p.app_id
		WHERE p.on_sale = 1 AND (p.sale_ends_at IS NULL OR p.sale_ends_at > ?)
		ORDER BY p.discount_percent DESC, p.app_id ASC
	`

	rows, err := r.db.SQL().QueryContext(ctx, query, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query active sales: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanDeals(rows)
}

func scanDeals(rows *sql.Rows) ([]*models.Deal, error) {
	var deals []*models.Deal
	for rows.Next() {
		var deal models.Deal
		err := rows.Scan(
			&deal.AppID,
			&deal.Name,
			&deal.Store,
			&deal.Price,
			&deal.DiscountPercent,
			&deal.SaleEndsAt,
			&deal.URL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deal row: %w", err)
		}
		deals = append(deals, &deal)
	}
	return deals, rows.Err()
}

// PruneHistory deletes snapshots recorded before the cutoff and reports how
// many rows went.
func (r *PriceRepository) PruneHistory(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.SQL().ExecContext(ctx,
		"DELETE FROM price_history WHERE recorded_at < ?", olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune price history: %w", err)
	}
	return result.RowsAffected()
}

// PriceBucket is one bar of the current-price histogram
type PriceBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// priceHistogramBounds are the upper bounds of the histogram buckets, in
// ascending order. The last bucket is open-ended.
var priceHistogramBounds = []struct {
	label string
	max   float64
}{
	{"under_5", 5},
	{"5_to_10", 10},
	{"10_to_20", 20},
	{"20_to_40", 40},
	{"40_to_60", 60},
}

const priceHistogramOverflow = "over_60"

// PriceHistogram buckets each game's lowest current price into fixed ranges.
// Games without any price row are not counted.
func (r *PriceRepository) PriceHistogram(ctx context.Context) ([]*PriceBucket, error) {
	query := `
		SELECT MIN(price) AS lowest
		FROM prices
		GROUP BY app_id
	`

	rows, err := r.db.SQL().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query price histogram: %w", err)
	}
	defer func() { _ = rows.Close() }()

	buckets := make([]*PriceBucket, 0, len(priceHistogramBounds)+1)
	for _, bound := range priceHistogramBounds {
		buckets = append(buckets, &PriceBucket{Label: bound.label})
	}
	overflow := &PriceBucket{Label: priceHistogramOverflow}
	buckets = append(buckets, overflow)

	for rows.Next() {
		var lowest float64
		if err := rows.Scan(&lowest); err != nil {
			return nil, fmt.Errorf("failed to scan lowest price: %w", err)
		}
		placed := false
		for i, bound := range priceHistogramBounds {
			if lowest < bound.max {
				buckets[i].Count++
				placed = true
				break
			}
		}
		if !placed {
			overflow.Count++
		}
	}
	return buckets, rows.Err()
}
