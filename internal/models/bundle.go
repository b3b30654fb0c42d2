package models

import (
	"time"
)

// Bundle groups games under a curated label. Bundles are maintained
// administratively; no external source syncs them.
type Bundle struct {
	ID          string        `json:"id" db:"id"`
	Name        string        `json:"name" db:"name"`
	Description *string       `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time     `json:"createdAt" db:"created_at"`
	Items       []*BundleItem `json:"items,omitempty"`
}

// BundleItem is one game's membership in a bundle
type BundleItem struct {
	BundleID string  `json:"bundleId" db:"bundle_id"`
	AppID    int64   `json:"appId" db:"app_id"`
	Tier     *string `json:"tier,omitempty" db:"tier"`
	Name     string  `json:"name,omitempty"`
}
