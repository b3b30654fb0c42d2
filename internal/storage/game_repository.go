package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deck-tracker/internal/models"
)

// Page size bounds for list queries.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// sortFields maps the exposed sort names to SQL expressions. Anything not in
// this allow-list silently falls back to the default sort field.
var sortFields = map[string]string{
	"name":         "g.name",
	"release_date": "g.release_date",
	"min_price":    "min_price",
	"max_discount": "max_discount",
	"proton_score": "r.score",
}

const defaultSortField = "name"

// ListParams describes a filtered, sorted, paginated games query.
type ListParams struct {
	Page        int
	Limit       int
	SortBy      string
	SortOrder   string
	Tiers       []string
	Search      string
	MinPrice    *float64
	MaxPrice    *float64
	MinDiscount *float64
	OnSaleOnly  bool
}

// normalize coerces out-of-range paging values and unknown sort inputs to
// their defaults rather than erroring.
func (p *ListParams) normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if _, ok := sortFields[p.SortBy]; !ok {
		p.SortBy = defaultSortField
	}
	if p.SortOrder != "desc" {
		p.SortOrder = "asc"
	}
}

// ListResult is one page of games plus pagination metadata.
type ListResult struct {
	Games      []*models.GameListItem `json:"games"`
	Total      int                    `json:"total"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	TotalPages int                    `json:"totalPages"`
}

// GameRepository handles game metadata persistence
type GameRepository struct {
	db *DB
}

// NewGameRepository creates a new game repository
func NewGameRepository(db *DB) *GameRepository {
	return &GameRepository{db: db}
}

const upsertGameQuery = `
	INSERT INTO games (
		app_id, name, description, header_image, release_date,
		developers, publishers, genres, tags, is_free, last_updated
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(app_id) DO UPDATE SET
		name = excluded.name,
		description = excluded.description,
		header_image = excluded.header_image,
		release_date = excluded.release_date,
		developers = excluded.developers,
		publishers = excluded.publishers,
		genres = excluded.genres,
		tags = excluded.tags,
		is_free = excluded.is_free,
		last_updated = excluded.last_updated
`

// Upsert inserts or updates a game keyed by app id
func (r *GameRepository) Upsert(ctx context.Context, game *models.Game) error {
	args, err := gameUpsertArgs(game)
	if err != nil {
		return err
	}

	if _, err := r.db.SQL().ExecContext(ctx, upsertGameQuery, args...); err != nil {
		return fmt.Errorf("failed to upsert game %d: %w", game.AppID, err)
	}
	return nil
}

// UpsertBatch upserts games inside one transaction: all rows apply or none do.
func (r *GameRepository) UpsertBatch(ctx context.Context, games []*models.Game) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, game := range games {
			args, err := gameUpsertArgs(game)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, upsertGameQuery, args...); err != nil {
				return fmt.Errorf("failed to upsert game %d: %w", game.AppID, err)
			}
		}
		return nil
	})
}

func gameUpsertArgs(game *models.Game) ([]interface{}, error) {
	developers, err := marshalStringSlice(game.Developers)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal developers: %w", err)
	}
	publishers, err := marshalStringSlice(game.Publishers)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal publishers: %w", err)
	}
	genres, err := marshalStringSlice(game.Genres)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal genres: %w", err)
	}
	tags, err := marshalStringSlice(game.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}

	return []interface{}{
		game.AppID,
		game.Name,
		game.Description,
		game.HeaderImage,
		game.ReleaseDate,
		developers,
		publishers,
		genres,
		tags,
		game.IsFree,
		game.LastUpdated.UTC(),
	}, nil
}

// GetByID retrieves a game by app id, or nil when absent.
func (r *GameRepository) GetByID(ctx context.Context, appID int64) (*models.Game, error) {
	query := `
		SELECT app_id, name, description, header_image, release_date,
			   developers, publishers, genres, tags, is_free, last_updated
		FROM games
		WHERE app_id = ?
	`

	game, err := scanGame(r.db.SQL().QueryRowContext(ctx, query, appID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get game %d: %w", appID, err)
	}
	return game, nil
}

// Delete removes a game; ratings, prices and history cascade.
func (r *GameRepository) Delete(ctx context.Context, appID int64) error {
	result, err := r.db.SQL().ExecContext(ctx, "DELETE FROM games WHERE app_id = ?", appID)
	if err != nil {
		return fmt.Errorf("failed to delete game %d: %w", appID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("game %d not found", appID)
	}
	return nil
}

// Count returns the total number of games
func (r *GameRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.SQL().QueryRowContext(ctx, "SELECT COUNT(*) FROM games").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return count, nil
}

// ListAppIDs returns app ids, optionally restricted to paid games (the only
// ones the pricing provider can quote).
func (r *GameRepository) ListAppIDs(ctx context.Context, paidOnly bool, limit int) ([]int64, error) {
	query := "SELECT app_id FROM games"
	if paidOnly {
		query += " WHERE is_free = 0"
	}
	query += " ORDER BY app_id ASC"

	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list app ids: %w", err)
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

// ListStale returns app ids of games not refreshed since the cutoff,
// stalest first.
func (r *GameRepository) ListStale(ctx context.Context, maxAge time.Duration, limit int) ([]int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	query := "SELECT app_id FROM games WHERE last_updated < ? ORDER BY last_updated ASC"
	args := []interface{}{cutoff}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale games: %w", err)
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

// onSaleCountExpr counts a game's price rows currently flagged on sale.
const onSaleCountExpr = "SUM(CASE WHEN p.on_sale = 1 THEN 1 ELSE 0 END)"

// List runs the filtered, sorted, paginated games query. Pre-aggregation
// filters (tier, text search) land in WHERE; filters over the per-game price
// aggregates land in HAVING. The total is computed from the same filtered and
// grouped query before LIMIT/OFFSET.
func (r *GameRepository) List(ctx context.Context, params ListParams) (*ListResult, error) {
	params.normalize()

	var wherePreds, havingPreds []Predicate

	if len(params.Tiers) > 0 {
		wherePreds = append(wherePreds, SetMembership{Column: "r.tier", Values: params.Tiers})
	}
	if params.Search != "" {
		wherePreds = append(wherePreds, TextMatch{Column: "g.name", Term: params.Search})
	}
	if params.MinPrice != nil || params.MaxPrice != nil {
		havingPreds = append(havingPreds, RangeBound{Expr: "MIN(p.price)", Min: params.MinPrice, Max: params.MaxPrice})
	}
	if params.MinDiscount != nil {
		havingPreds = append(havingPreds, RangeBound{Expr: "MAX(p.discount_percent)", Min: params.MinDiscount})
	}
	if params.OnSaleOnly {
		one := 1.0
		havingPreds = append(havingPreds, RangeBound{Expr: onSaleCountExpr, Min: &one})
	}

	where, whereArgs := composePredicates(wherePreds)
	having, havingArgs := composePredicates(havingPreds)

	var base strings.Builder
	base.WriteString(`
		FROM games g
		LEFT JOIN proton_ratings r ON r.app_id = g.app_id
		LEFT JOIN prices p ON p.app_id = g.app_id`)
	if where != "" {
		base.WriteString("\n\t\tWHERE " + where)
	}
	base.WriteString("\n\t\tGROUP BY g.app_id")
	if having != "" {
		base.WriteString("\n\t\tHAVING " + having)
	}

	baseArgs := append(append([]interface{}{}, whereArgs...), havingArgs...)

	countQuery := "SELECT COUNT(*) FROM (SELECT g.app_id" + base.String() + ")"
	var total int
	if err := r.db.SQL().QueryRowContext(ctx, countQuery, baseArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count filtered games: %w", err)
	}

	orderExpr := sortFields[params.SortBy]
	direction := "ASC"
	if params.SortOrder == "desc" {
		direction = "DESC"
	}

	listQuery := `SELECT g.app_id, g.name, g.description, g.header_image, g.release_date,
		g.developers, g.publishers, g.genres, g.tags, g.is_free, g.last_updated,
		r.tier, r.score,
		MIN(p.price) AS min_price,
		MAX(p.discount_percent) AS max_discount,
		` + onSaleCountExpr + ` AS on_sale_count,
		(SELECT p2.store FROM prices p2 WHERE p2.app_id = g.app_id ORDER BY p2.price ASC, p2.store ASC LIMIT 1) AS lowest_price_store` +
		base.String() +
		"\n\t\tORDER BY " + orderExpr + " " + direction + ", g.app_id ASC" +
		"\n\t\tLIMIT ? OFFSET ?"

	offset := (params.Page - 1) * params.Limit
	listArgs := append(append([]interface{}{}, baseArgs...), params.Limit, offset)

	rows, err := r.db.SQL().QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer func() { _ = rows.Close() }()

	games := make([]*models.GameListItem, 0, params.Limit)
	for rows.Next() {
		item, err := scanGameListItem(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate games: %w", err)
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + params.Limit - 1) / params.Limit
	}

	return &ListResult{
		Games:      games,
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: totalPages,
	}, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGame(row rowScanner) (*models.Game, error) {
	var game models.Game
	var developers, publishers, genres, tags sql.NullString

	err := row.Scan(
		&game.AppID,
		&game.Name,
		&game.Description,
		&game.HeaderImage,
		&game.ReleaseDate,
		&developers,
		&publishers,
		&genres,
		&tags,
		&game.IsFree,
		&game.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	if game.Developers, err = unmarshalStringSlice(developers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal developers: %w", err)
	}
	if game.Publishers, err = unmarshalStringSlice(publishers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal publishers: %w", err)
	}
	if game.Genres, err = unmarshalStringSlice(genres); err != nil {
		return nil, fmt.Errorf("failed to unmarshal genres: %w", err)
	}
	if game.Tags, err = unmarshalStringSlice(tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}

	return &game, nil
}

func scanGameListItem(rows *sql.Rows) (*models.GameListItem, error) {
	var item models.GameListItem
	var developers, publishers, genres, tags sql.NullString
	var tier, lowestStore sql.NullString
	var score, minPrice sql.NullFloat64
	var maxDiscount, onSaleCount sql.NullInt64

	err := rows.Scan(
		&item.AppID,
		&item.Name,
		&item.Description,
		&item.HeaderImage,
		&item.ReleaseDate,
		&developers,
		&publishers,
		&genres,
		&tags,
		&item.IsFree,
		&item.LastUpdated,
		&tier,
		&score,
		&minPrice,
		&maxDiscount,
		&onSaleCount,
		&lowestStore,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan game row: %w", err)
	}

	if item.Developers, err = unmarshalStringSlice(developers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal developers: %w", err)
	}
	if item.Publishers, err = unmarshalStringSlice(publishers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal publishers: %w", err)
	}
	if item.Genres, err = unmarshalStringSlice(genres); err != nil {
		return nil, fmt.Errorf("failed to unmarshal genres: %w", err)
	}
	if item.Tags, err = unmarshalStringSlice(tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}

	if tier.Valid {
		item.Tier = &tier.String
	}
	if score.Valid {
		item.ProtonScore = &score.Float64
	}
	if minPrice.Valid {
		item.LowestPrice = &minPrice.Float64
		if lowestStore.Valid {
			item.LowestPriceStore = &lowestStore.String
		}
	}
	if maxDiscount.Valid {
		discount := int(maxDiscount.Int64)
		item.MaxDiscount = &discount
	}
	item.OnSale = onSaleCount.Valid && onSaleCount.Int64 > 0

	return &item, nil
}

// marshalStringSlice serializes a list column; a nil slice stays NULL.
func marshalStringSlice(values []string) (interface{}, error) {
	if values == nil {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func unmarshalStringSlice(ns sql.NullString) ([]string, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(ns.String), &values); err != nil {
		return nil, err
	}
	return values, nil
}
