// Package models provides data models for the deck tracker system.
package models

import (
	"time"
)

// Game represents a Steam game's store metadata
type Game struct {
	AppID       int64      `json:"appId" db:"app_id"`
	Name        string     `json:"name" db:"name"`
	Description *string    `json:"description,omitempty" db:"description"`
	HeaderImage *string    `json:"headerImage,omitempty" db:"header_image"`
	ReleaseDate *string    `json:"releaseDate,omitempty" db:"release_date"`
	Developers  []string   `json:"developers,omitempty" db:"developers"`
	Publishers  []string   `json:"publishers,omitempty" db:"publishers"`
	Genres      []string   `json:"genres,omitempty" db:"genres"`
	Tags        []string   `json:"tags,omitempty" db:"tags"`
	IsFree      bool       `json:"isFree" db:"is_free"`
	LastUpdated time.Time  `json:"lastUpdated" db:"last_updated"`
}

// GameListItem is a Game row augmented with rating fields and per-game price
// aggregates as returned by the list query.
type GameListItem struct {
	Game
	Tier             *string  `json:"proton_tier,omitempty"`
	ProtonScore      *float64 `json:"proton_score,omitempty"`
	LowestPrice      *float64 `json:"lowest_price,omitempty"`
	LowestPriceStore *string  `json:"lowest_price_store,omitempty"`
	MaxDiscount      *int     `json:"max_discount,omitempty"`
	OnSale           bool     `json:"on_sale"`
}

// GameDetail is the full per-game view: metadata, rating, current prices per
// store, bundle memberships and the same price aggregates the list rows
// carry.
type GameDetail struct {
	Game
	Rating           *ProtonRating `json:"rating,omitempty"`
	Prices           []*Price      `json:"prices"`
	Bundles          []*Bundle     `json:"bundles"`
	LowestPrice      *float64      `json:"lowest_price,omitempty"`
	LowestPriceStore *string       `json:"lowest_price_store,omitempty"`
	MaxDiscount      *int          `json:"max_discount,omitempty"`
	OnSale           bool          `json:"on_sale"`
}
