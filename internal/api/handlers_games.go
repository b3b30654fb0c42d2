package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	apperrors "github.com/deck-tracker/internal/errors"
	"github.com/deck-tracker/internal/models"
	"github.com/deck-tracker/internal/storage"
	"github.com/deck-tracker/internal/types"
)

// handleListGames serves the filtered, sorted, paginated games list.
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	cacheKey := s.cache.GenerateCacheKey(storage.CacheKeyGames, r.URL.Query().Encode())
	var cached storage.ListResult
	if hit, err := s.cache.Get(r.Context(), cacheKey, &cached); err != nil {
		s.logger.WithError(err).Warn("Games cache read failed")
	} else if hit {
		respondJSON(w, http.StatusOK, &cached)
		return
	}

	result, err := s.games.List(r.Context(), params)
	if err != nil {
		respondMappedError(w, apperrors.NewDatabaseError("list games", err))
		return
	}

	if err := s.cache.Set(r.Context(), cacheKey, result); err != nil {
		s.logger.WithError(err).Warn("Games cache write failed")
	}

	respondJSON(w, http.StatusOK, result)
}

// parseListParams reads the query surface of /api/games. Invalid numbers for
// page and limit fall back to defaults; unknown tiers are rejected.
func parseListParams(r *http.Request) (storage.ListParams, error) {
	q := r.URL.Query()

	params := storage.ListParams{
		Page:       atoiOrZero(q.Get("page")),
		Limit:      atoiOrZero(q.Get("limit")),
		SortBy:     q.Get("sort_by"),
		SortOrder:  strings.ToLower(q.Get("sort_order")),
		Search:     q.Get("search"),
		OnSaleOnly: q.Get("on_sale") == "true",
	}

	if raw := q.Get("proton_tier"); raw != "" {
		for _, tier := range strings.Split(raw, ",") {
			tier = strings.ToLower(strings.TrimSpace(tier))
			if tier == "" {
				continue
			}
			if !types.IsKnownTier(types.Tier(tier)) {
				return params, apperrors.NewInvalidParameterError("proton_tier", "unknown tier "+tier)
			}
			params.Tiers = append(params.Tiers, tier)
		}
	}

	var err error
	if params.MinPrice, err = parseFloatParam(q.Get("min_price"), "min_price"); err != nil {
		return params, err
	}
	if params.MaxPrice, err = parseFloatParam(q.Get("max_price"), "max_price"); err != nil {
		return params, err
	}
	if params.MinDiscount, err = parseFloatParam(q.Get("min_discount"), "min_discount"); err != nil {
		return params, err
	}

	return params, nil
}

func atoiOrZero(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func parseFloatParam(raw, name string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperrors.NewInvalidParameterError(name, "must be a number")
	}
	if v < 0 {
		v = 0
	}
	return &v, nil
}

func parseAppID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	appID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || appID <= 0 {
		return 0, apperrors.NewInvalidAppIDError(raw)
	}
	return appID, nil
}

// handleGetGame serves one game with its rating, per-store prices and bundle
// memberships.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	appID, err := parseAppID(r)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	game, err := s.games.GetByID(r.Context(), appID)
	if err != nil {
		respondMappedError(w, apperrors.NewDatabaseError("get game", err))
		return
	}
	if game == nil {
		respondMappedError(w, apperrors.NewGameNotFoundError(appID))
		return
	}

	detail := models.GameDetail{Game: *game}

	if detail.Rating, err = s.ratings.GetByAppID(r.Context(), appID); err != nil {
		respondMappedError(w, apperrors.NewDatabaseError("get rating", err))
		return
	}
	if detail.Prices, err = s.prices.GetByAppID(r.Context(), appID); err != nil {
		respondMappedError(w, apperrors.NewDatabaseError("get prices", err))
		return
	}
	if detail.Prices == nil {
		detail.Prices = []*models.Price{}
	}
	if detail.Bundles, err = s.bundles.ListForGame(r.Context(), appID); err != nil {
		respondMappedError(w, apperrors.NewDatabaseError("get bundles", err))
		return
	}
	if detail.Bundles == nil {
		detail.Bundles = []*models.Bundle{}
	}

	// Fold the per-store rows into the same aggregates the list view carries.
	for _, price := range detail.Prices {
		if detail.LowestPrice == nil || price.Price < *detail.LowestPrice {
			p, store := price.Price, string(price.Store)
			detail.LowestPrice = &p
			detail.LowestPriceStore = &store
		}
		if detail.MaxDiscount == nil || price.DiscountPercent > *detail.MaxDiscount {
			d := price.DiscountPercent
			detail.MaxDiscount = &d
		}
		if price.OnSale {
			detail.OnSale = true
		}
	}

	respondJSON(w, http.StatusOK, &detail)
}

// handleGetPriceHistory serves price snapshots over a trailing window.
func (s *Server) handleGetPriceHistory(w http.ResponseWriter, r *http.Request) {
	appID, err := parseAppID(r)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	game, err := s.games.GetByID(r.Context(), appID)
	if err != nil {
		respondMappedError(w, apperrors.NewDatabaseError("get game", err))
		return
	}
	if game == nil {
		respondMappedError(w, apperrors.NewGameNotFoundError(appID))
		return
	}

	days := atoiOrZero(r.URL.Query().Get("days"))
	if days <= 0 {
		days = 90
	}
	if days > 365 {
		days = 365
	}
	store := strings.ToLower(r.URL.Query().Get("store"))

	history, err := s.prices.History(r.Context(), appID, days, store)
	if err != nil {
		respondMappedError(w, apperrors.NewDatabaseError("get price history", err))
		return
	}
	if history == nil {
		history = []*models.PriceHistoryEntry{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"appId":   appID,
		"days":    days,
		"history": history,
	})
}
