package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"phimstream/internal/auth"
	"phimstream/models"
	"phimstream/services/profile"
	"phimstream/services/remote"
)

// HistoryHandler serves the watch history, backed per request like the
// library handler.
type HistoryHandler struct {
	profiles *profile.Selector
}

func NewHistoryHandler(profiles *profile.Selector) *HistoryHandler {
	return &HistoryHandler{profiles: profiles}
}

func (h *HistoryHandler) backend(r *http.Request) profile.Backend {
	return h.profiles.Resolve(auth.GetSession(r), auth.ProfileID(r))
}

// List returns the watch history, most recent first.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.backend(r).History(r.Context())
	if err != nil {
		log.Printf("[history] list: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// RecordRequest is the body for recording a watch event.
type RecordRequest struct {
	Item            models.CatalogItem `json:"item"`
	Episode         string             `json:"episode"`
	ProgressSeconds float64            `json:"progressSeconds"`
}

// Record notes that the profile watched (part of) a title. Rewatching
// moves the entry to the front instead of duplicating it.
func (h *HistoryHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Item.Slug == "" {
		writeJSONError(w, http.StatusBadRequest, "item.slug is required")
		return
	}

	if err := h.backend(r).RecordWatch(r.Context(), req.Item, req.Episode, req.ProgressSeconds); err != nil {
		log.Printf("[history] record %s: %v", req.Item.Slug, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to record watch")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// ProgressResponse is the resume position for a title.
type ProgressResponse struct {
	Episode         string  `json:"episode"`
	ProgressSeconds float64 `json:"progressSeconds"`
}

// Progress returns where the profile left off in a title, or 404 when the
// title was never watched.
func (h *HistoryHandler) Progress(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	entries, err := h.backend(r).History(r.Context())
	if err != nil {
		log.Printf("[history] progress %s: %v", slug, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	for _, e := range entries {
		if e.Slug == slug {
			writeJSON(w, http.StatusOK, ProgressResponse{
				Episode:         e.CurrentEpisode,
				ProgressSeconds: e.Progress,
			})
			return
		}
	}
	writeJSONError(w, http.StatusNotFound, "no progress recorded")
}

// Remove deletes a history entry by slug.
func (h *HistoryHandler) Remove(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	if err := h.backend(r).RemoveFromHistory(r.Context(), slug); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "entry not found")
			return
		}
		log.Printf("[history] remove %s: %v", slug, err)
		writeJSONError(w, http.StatusNotFound, "entry not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
