package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/deck-tracker/internal/models"
	"github.com/deck-tracker/internal/types"
)

// SyncStatusRepository records the per-source sync audit register
type SyncStatusRepository struct {
	db *DB
}

// NewSyncStatusRepository creates a new sync status repository
func NewSyncStatusRepository(db *DB) *SyncStatusRepository {
	return &SyncStatusRepository{db: db}
}

// Upsert records the latest run for a source, replacing any previous row.
func (r *SyncStatusRepository) Upsert(ctx context.Context, status *models.SyncStatus) error {
	query := `
		INSERT INTO sync_status (source, last_sync_at, status, record_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			last_sync_at = excluded.last_sync_at,
			status = excluded.status,
			record_count = excluded.record_count
	`

	_, err := r.db.SQL().ExecContext(ctx, query,
		string(status.Source),
		status.LastSyncAt.UTC(),
		status.Status,
		status.RecordCount,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert sync status for %s: %w", status.Source, err)
	}
	return nil
}

// Get retrieves the latest run for a source, or nil when it never ran.
func (r *SyncStatusRepository) Get(ctx context.Context, source types.SyncSource) (*models.SyncStatus, error) {
	var status models.SyncStatus
	err := r.db.SQL().QueryRowContext(ctx,
		"SELECT source, last_sync_at, status, record_count FROM sync_status WHERE source = ?",
		string(source)).Scan(
		&status.Source, &status.LastSyncAt, &status.Status, &status.RecordCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sync status for %s: %w", source, err)
	}
	return &status, nil
}

// List returns the register for every source that has run at least once.
func (r *SyncStatusRepository) List(ctx context.Context) ([]*models.SyncStatus, error) {
	rows, err := r.db.SQL().QueryContext(ctx,
		"SELECT source, last_sync_at, status, record_count FROM sync_status ORDER BY source ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list sync status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var statuses []*models.SyncStatus
	for rows.Next() {
		var status models.SyncStatus
		if err := rows.Scan(&status.Source, &status.LastSyncAt, &status.Status, &status.RecordCount); err != nil {
			return nil, fmt.Errorf("failed to scan sync status: %w", err)
		}
		statuses = append(statuses, &status)
	}
	return statuses, rows.Err()
}
