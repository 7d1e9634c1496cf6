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

// LibraryHandler serves the saved-titles collection. The backing store is
// picked per request: signed-in accounts hit the hosted gateway, anonymous
// device profiles the local JSON store.
type LibraryHandler struct {
	profiles *profile.Selector
}

func NewLibraryHandler(profiles *profile.Selector) *LibraryHandler {
	return &LibraryHandler{profiles: profiles}
}

func (h *LibraryHandler) backend(r *http.Request) profile.Backend {
	return h.profiles.Resolve(auth.GetSession(r), auth.ProfileID(r))
}

// List returns the profile's saved titles, most recently saved first.
func (h *LibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.backend(r).Library(r.Context())
	if err != nil {
		log.Printf("[library] list: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load library")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Save adds a title to the library. Saving a title that is already there
// succeeds without duplicating it.
func (h *LibraryHandler) Save(w http.ResponseWriter, r *http.Request) {
	var item models.CatalogItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	if item.Slug == "" {
		writeJSONError(w, http.StatusBadRequest, "slug is required")
		return
	}

	if err := h.backend(r).SaveToLibrary(r.Context(), item); err != nil {
		log.Printf("[library] save %s: %v", item.Slug, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to save title")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// Remove deletes a saved title by slug.
func (h *LibraryHandler) Remove(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	if err := h.backend(r).RemoveFromLibrary(r.Context(), slug); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "title not in library")
			return
		}
		log.Printf("[library] remove %s: %v", slug, err)
		writeJSONError(w, http.StatusNotFound, "title not in library")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// Status reports whether a slug is saved.
func (h *LibraryHandler) Status(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	saved, err := h.backend(r).IsSaved(r.Context(), slug)
	if err != nil {
		log.Printf("[library] status %s: %v", slug, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to check library")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}
