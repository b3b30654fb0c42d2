package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/deck-tracker/internal/errors"
	"github.com/deck-tracker/internal/models"
)

// handleBestDeals serves the deepest current discounts.
func (s *Server) handleBestDeals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := atoiOrZero(q.Get("limit"))
	minDiscount := atoiOrZero(q.Get("min_discount"))
	if minDiscount < 0 {
		minDiscount = 0
	}

	deals, err := s.prices.BestDeals(r.Context(), limit, minDiscount)
	if err != nil {
		respondMappedError(w, apperrors.NewDatabaseError("best deals", err))
		return
	}
	if deals == nil {
		deals = []*models.Deal{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"deals": deals})
}

// handleActiveSales serves on-sale rows whose sale window has not passed.
func (s *Server) handleActiveSales(w http.ResponseWriter, r *http.Request) {
	deals, err := s.prices.ActiveSales(r.Context(), time.Now().UTC())
	if err != nil {
		respondMappedError(w, apperrors.NewDatabaseError("active sales", err))
		return
	}
	if deals == nil {
		deals = []*models.Deal{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"deals": deals})
}

// handleListBundles serves the curated bundle list without members.
func (s *Server) handleListBundles(w http.ResponseWriter, r *http.Request) {
	bundles, err := s.bundles.List(r.Context())
	if err != nil {
		respondMappedError(w, apperrors.NewDatabaseError("list bundles", err))
		return
	}
	if bundles == nil {
		bundles = []*models.Bundle{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"bundles": bundles})
}

// handleGetBundle serves one bundle with its members.
func (s *Server) handleGetBundle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	bundle, err := s.bundles.GetByID(r.Context(), id)
	if err != nil {
		respondMappedError(w, apperrors.NewDatabaseError("get bundle", err))
		return
	}
	if bundle == nil {
		respondMappedError(w, apperrors.NewBundleNotFoundError(id))
		return
	}

	respondJSON(w, http.StatusOK, bundle)
}
