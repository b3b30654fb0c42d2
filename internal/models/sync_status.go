package models

import (
	"time"

	"github.com/deck-tracker/internal/types"
)

// SyncStatus is the status register for one data source: overwritten on each
// sync run, never appended.
type SyncStatus struct {
	Source      types.SyncSource `json:"source" db:"source"`
	LastSyncAt  time.Time        `json:"lastSyncAt" db:"last_sync_at"`
	Status      string           `json:"status" db:"status"`
	RecordCount int              `json:"recordCount" db:"record_count"`
}

// Sync run status values.
const (
	SyncStatusOK      = "ok"
	SyncStatusPartial = "partial"
	SyncStatusFailed  = "failed"
)
