package models

import (
	"time"

	"github.com/deck-tracker/internal/types"
)

// Price represents the most recent price observation for a game on one store
type Price struct {
	AppID           int64       `json:"appId" db:"app_id"`
	Store           types.Store `json:"store" db:"store"`
	Price           float64     `json:"price" db:"price"`
	DiscountPercent int         `json:"discountPercent" db:"discount_percent"`
	OnSale          bool        `json:"onSale" db:"on_sale"`
	SaleEndsAt      *time.Time  `json:"saleEndsAt,omitempty" db:"sale_ends_at"`
	URL             *string     `json:"url,omitempty" db:"url"`
	LastUpdated     time.Time   `json:"lastUpdated" db:"last_updated"`
}

// PriceHistoryEntry represents one historical price snapshot
type PriceHistoryEntry struct {
	ID              int64       `json:"id" db:"id"`
	AppID           int64       `json:"appId" db:"app_id"`
	Store           types.Store `json:"store" db:"store"`
	Price           float64     `json:"price" db:"price"`
	DiscountPercent int         `json:"discountPercent" db:"discount_percent"`
	RecordedAt      time.Time   `json:"recordedAt" db:"recorded_at"`
}

// Deal represents a discounted price joined with its game's name, used by the
// best-deals and active-sales views.
type Deal struct {
	AppID           int64       `json:"appId"`
	Name            string      `json:"name"`
	Store           types.Store `json:"store"`
	Price           float64     `json:"price"`
	DiscountPercent int         `json:"discountPercent"`
	SaleEndsAt      *time.Time  `json:"saleEndsAt,omitempty"`
	URL             *string     `json:"url,omitempty"`
}
