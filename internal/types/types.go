// Package types provides common type definitions for the deck tracker system.
package types

// Tier represents a ProtonDB Steam Deck compatibility tier.
type Tier string

const (
	// TierPlatinum represents games that run perfectly out of the box
	TierPlatinum Tier = "platinum"
	// TierGold represents games that run perfectly after tweaks
	TierGold Tier = "gold"
	// TierSilver represents games that run with minor issues
	TierSilver Tier = "silver"
	// TierBronze represents games that run with significant issues
	TierBronze Tier = "bronze"
	// TierBorked represents games that do not run
	TierBorked Tier = "borked"
	// TierPending represents games awaiting enough reports for a rating
	TierPending Tier = "pending"
	// TierNative represents games with a native Linux build
	TierNative Tier = "native"
)

// KnownTiers lists every tier value accepted by filters, best first.
var KnownTiers = []Tier{
	TierPlatinum,
	TierGold,
	TierSilver,
	TierBronze,
	TierBorked,
	TierPending,
	TierNative,
}

// IsKnownTier reports whether s is a member of the closed tier enumeration.
func IsKnownTier(s Tier) bool {
	for _, t := range KnownTiers {
		if t == s {
			return true
		}
	}
	return false
}

// Store identifies a storefront reported by the pricing provider.
type Store string

const (
	// StoreSteam is the Steam storefront
	StoreSteam Store = "steam"
	// StoreGOG is the GOG storefront
	StoreGOG Store = "gog"
	// StoreEpic is the Epic Games Store
	StoreEpic Store = "epic"
	// StoreHumble is the Humble Store
	StoreHumble Store = "humble"
	// StoreFanatical is the Fanatical storefront
	StoreFanatical Store = "fanatical"
)

// SyncSource identifies a data source refreshed by sync jobs.
type SyncSource string

const (
	// SourceGames is Steam store metadata
	SourceGames SyncSource = "games"
	// SourceRatings is ProtonDB compatibility data
	SourceRatings SyncSource = "ratings"
	// SourcePrices is IsThereAnyDeal pricing data
	SourcePrices SyncSource = "prices"
)

// SyncOutcome classifies the result of syncing a single app id.
type SyncOutcome string

const (
	// OutcomeUpdated means the record was fetched and stored
	OutcomeUpdated SyncOutcome = "updated"
	// OutcomeSkipped means the upstream had no usable data (not an error)
	OutcomeSkipped SyncOutcome = "skipped"
	// OutcomeFailed means the fetch or store failed
	OutcomeFailed SyncOutcome = "failed"
)

// ProgressUpdate is delivered to an optional callback after each app id
// processed during a bulk sync.
type ProgressUpdate struct {
	Current int         `json:"current"`
	Total   int         `json:"total"`
	AppID   int64       `json:"appId"`
	Outcome SyncOutcome `json:"outcome"`
}

// ProgressFunc receives bulk sync progress updates.
type ProgressFunc func(ProgressUpdate)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
