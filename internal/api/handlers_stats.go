package api

import (
	"net/http"

	apperrors "github.com/deck-tracker/internal/errors"
	"github.com/deck-tracker/internal/models"
	"github.com/deck-tracker/internal/storage"
)

// StatsResponse summarizes the tracked catalog.
type StatsResponse struct {
	Games          int                    `json:"games"`
	TierCounts     []*storage.TierCount   `json:"tierCounts"`
	PriceHistogram []*storage.PriceBucket `json:"priceHistogram"`
	LastSync       []*models.SyncStatus   `json:"lastSync"`
}

// handleStats serves catalog counts, the tier distribution, the price
// histogram and the per-source sync register.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	cacheKey := s.cache.GenerateCacheKey(storage.CacheKeyStats)
	var cached StatsResponse
	if hit, err := s.cache.Get(r.Context(), cacheKey, &cached); err != nil {
		s.logger.WithError(err).Warn("Stats cache read failed")
	} else if hit {
		respondJSON(w, http.StatusOK, &cached)
		return
	}

	var stats StatsResponse
	var err error

	if stats.Games, err = s.games.Count(r.Context()); err != nil {
		respondMappedError(w, apperrors.NewDatabaseError("count games", err))
		return
	}
	if stats.TierCounts, err = s.ratings.TierDistribution(r.Context()); err != nil {
		respondMappedError(w, apperrors.NewDatabaseError("tier distribution", err))
		return
	}
	if stats.TierCounts == nil {
		stats.TierCounts = []*storage.TierCount{}
	}
	if stats.PriceHistogram, err = s.prices.PriceHistogram(r.Context()); err != nil {
		respondMappedError(w, apperrors.NewDatabaseError("price histogram", err))
		return
	}
	if stats.LastSync, err = s.status.List(r.Context()); err != nil {
		respondMappedError(w, apperrors.NewDatabaseError("sync status", err))
		return
	}
	if stats.LastSync == nil {
		stats.LastSync = []*models.SyncStatus{}
	}

	if err := s.cache.Set(r.Context(), cacheKey, &stats); err != nil {
		s.logger.WithError(err).Warn("Stats cache write failed")
	}

	respondJSON(w, http.StatusOK, &stats)
}
