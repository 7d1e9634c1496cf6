package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"phimstream/internal/auth"
	"phimstream/models"
	"phimstream/services/stats"
)

// StatsHandler serves viewing statistics, achievements and ratings. Stats
// are kept locally for accounts too, keyed by account ID instead of the
// device profile.
type StatsHandler struct {
	stats *stats.Store
}

func NewStatsHandler(store *stats.Store) *StatsHandler {
	return &StatsHandler{stats: store}
}

func (h *StatsHandler) principal(r *http.Request) string {
	if id := auth.GetAccountID(r); id != "" {
		return id
	}
	return auth.ProfileID(r)
}

// Get returns the profile's accumulated stats and achievements.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.Get(h.principal(r)))
}

// WatchRequest is the body for counting a watch session.
type WatchRequest struct {
	Item         models.CatalogItem `json:"item"`
	WatchMinutes int                `json:"watchMinutes"`
}

// RecordWatch counts a watch session and returns the updated stats, so the
// client can surface newly unlocked achievements immediately.
func (h *StatsHandler) RecordWatch(w http.ResponseWriter, r *http.Request) {
	var req WatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Item.Slug == "" {
		writeJSONError(w, http.StatusBadRequest, "item.slug is required")
		return
	}

	updated := h.stats.RecordWatch(h.principal(r), req.Item, req.WatchMinutes)
	writeJSON(w, http.StatusOK, updated)
}

// TopGenres returns the profile's most watched genres.
func (h *StatsHandler) TopGenres(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.TopGenres(h.principal(r), queryLimit(r, 5)))
}

// TopCountries returns the profile's most watched countries.
func (h *StatsHandler) TopCountries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.TopCountries(h.principal(r), queryLimit(r, 5)))
}

// RateRequest is the body for rating a title.
type RateRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

// Rate stores a 1-5 star rating for a slug, replacing any earlier one.
func (h *StatsHandler) Rate(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if !h.stats.Rate(h.principal(r), slug, req.Rating, req.Review) {
		writeJSONError(w, http.StatusInternalServerError, "failed to store rating")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rated"})
}

// Rating returns the profile's rating for a slug, or 404 when unrated.
func (h *StatsHandler) Rating(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	rating := h.stats.RatingFor(h.principal(r), slug)
	if rating == nil {
		writeJSONError(w, http.StatusNotFound, "not rated")
		return
	}
	writeJSON(w, http.StatusOK, rating)
}

func queryLimit(r *http.Request, fallback int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		return v
	}
	return fallback
}
