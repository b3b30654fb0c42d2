package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deck-tracker/internal/models"
)

// BundleRepository handles curated bundle persistence
type BundleRepository struct {
	db *DB
}

// NewBundleRepository creates a new bundle repository
func NewBundleRepository(db *DB) *BundleRepository {
	return &BundleRepository{db: db}
}

// Create stores a new bundle and its members in one transaction, assigning
// the bundle id when the caller left it empty.
func (r *BundleRepository) Create(ctx context.Context, bundle *models.Bundle) error {
	if bundle.ID == "" {
		bundle.ID = uuid.New().String()
	}
	if bundle.CreatedAt.IsZero() {
		bundle.CreatedAt = time.Now().UTC()
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO bundles (id, name, description, created_at) VALUES (?, ?, ?, ?)",
			bundle.ID, bundle.Name, bundle.Description, bundle.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert bundle: %w", err)
		}

		for _, item := range bundle.Items {
			item.BundleID = bundle.ID
			if err := insertBundleItem(ctx, tx, item); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddItem attaches a game to an existing bundle
func (r *BundleRepository) AddItem(ctx context.Context, bundleID string, item *models.BundleItem) error {
	item.BundleID = bundleID
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		return insertBundleItem(ctx, tx, item)
	})
}

func insertBundleItem(ctx context.Context, tx *sql.Tx, item *models.BundleItem) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO bundle_items (bundle_id, app_id, tier) VALUES (?, ?, ?)
		 ON CONFLICT(bundle_id, app_id) DO UPDATE SET tier = excluded.tier`,
		item.BundleID, item.AppID, item.Tier)
	if err != nil {
		return fmt.Errorf("failed to insert bundle item %d: %w", item.AppID, err)
	}
	return nil
}

// RemoveItem detaches a game from a bundle
func (r *BundleRepository) RemoveItem(ctx context.Context, bundleID string, appID int64) error {
	_, err := r.db.SQL().ExecContext(ctx,
		"DELETE FROM bundle_items WHERE bundle_id = ? AND app_id = ?", bundleID, appID)
	if err != nil {
		return fmt.Errorf("failed to remove bundle item %d: %w", appID, err)
	}
	return nil
}

// GetByID retrieves a bundle with its members, or nil when absent. Member
// rows carry the game name and stored tier annotation.
func (r *BundleRepository) GetByID(ctx context.Context, id string) (*models.Bundle, error) {
	var bundle models.Bundle
	err := r.db.SQL().QueryRowContext(ctx,
		"SELECT id, name, description, created_at FROM bundles WHERE id = ?", id).Scan(
		&bundle.ID, &bundle.Name, &bundle.Description, &bundle.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bundle %s: %w", id, err)
	}

	rows, err := r.db.SQL().QueryContext(ctx, `
		SELECT bi.bundle_id, bi.app_id, bi.tier, g.name
		FROM bundle_items bi
		JOIN games g ON g.app_id = bi.app_id
		WHERE bi.bundle_id = ?
		ORDER BY g.name ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get bundle items for %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item models.BundleItem
		if err := rows.Scan(&item.BundleID, &item.AppID, &item.Tier, &item.Name); err != nil {
			return nil, fmt.Errorf("failed to scan bundle item: %w", err)
		}
		bundle.Items = append(bundle.Items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// List returns all bundles without their members, newest first.
func (r *BundleRepository) List(ctx context.Context) ([]*models.Bundle, error) {
	rows, err := r.db.SQL().QueryContext(ctx,
		"SELECT id, name, description, created_at FROM bundles ORDER BY created_at DESC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bundles []*models.Bundle
	for rows.Next() {
		var bundle models.Bundle
		if err := rows.Scan(&bundle.ID, &bundle.Name, &bundle.Description, &bundle.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bundle: %w", err)
		}
		bundles = append(bundles, &bundle)
	}
	return bundles, rows.Err()
}

// ListForGame returns the bundles a game belongs to, without member lists.
func (r *BundleRepository) ListForGame(ctx context.Context, appID int64) ([]*models.Bundle, error) {
	rows, err := r.db.SQL().QueryContext(ctx, `
		SELECT b.id, b.name, b.description, b.created_at
		FROM bundles b
		JOIN bundle_items bi ON bi.bundle_id = b.id
		WHERE bi.app_id = ?
		ORDER BY b.name ASC
	`, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles for %d: %w", appID, err)
	}
	defer func() { _ = rows.Close() }()

	var bundles []*models.Bundle
	for rows.Next() {
		var bundle models.Bundle
		if err := rows.Scan(&bundle.ID, &bundle.Name, &bundle.Description, &bundle.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bundle: %w", err)
		}
		bundles = append(bundles, &bundle)
	}
	return bundles, rows.Err()
}

// Delete removes a bundle; its membership rows cascade.
func (r *BundleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.SQL().ExecContext(ctx, "DELETE FROM bundles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete bundle %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("bundle %s not found", id)
	}
	return nil
}
