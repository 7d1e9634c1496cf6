package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"phimstream/models"
	"phimstream/services/catalog"
	"phimstream/services/images"
	"phimstream/utils"
)

// CatalogHandler serves normalized listings from the upstream catalog.
type CatalogHandler struct {
	client *catalog.Client
	images *images.Builder
}

func NewCatalogHandler(client *catalog.Client, builder *images.Builder) *CatalogHandler {
	return &CatalogHandler{client: client, images: builder}
}

// listOptions reads the shared listing query parameters.
func listOptions(r *http.Request) catalog.ListOptions {
	q := r.URL.Query()
	opts := catalog.ListOptions{
		Category:  strings.TrimSpace(q.Get("category")),
		Country:   strings.TrimSpace(q.Get("country")),
		Year:      strings.TrimSpace(q.Get("year")),
		SortField: strings.TrimSpace(q.Get("sort_field")),
		SortType:  strings.TrimSpace(q.Get("sort_type")),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		opts.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = limit
	}
	return opts
}

// Latest serves the newest titles across all types.
func (h *CatalogHandler) Latest(w http.ResponseWriter, r *http.Request) {
	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}

	env, err := h.client.Latest(r.Context(), page)
	if err != nil {
		log.Printf("[catalog] latest page %d: %v", page, err)
		writeJSONError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}

	h.respondListing(w, env)
}

// ByType serves one catalog section, optionally filtered.
func (h *CatalogHandler) ByType(w http.ResponseWriter, r *http.Request) {
	typeName := mux.Vars(r)["type"]

	env, err := h.client.ByType(r.Context(), typeName, listOptions(r))
	if err != nil {
		log.Printf("[catalog] type %s: %v", typeName, err)
		writeJSONError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}

	h.respondListing(w, env)
}

// Search serves keyword search results. Unlike section listings, a failed
// search is an error, never a silent substitute list.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	if keyword == "" {
		writeJSONError(w, http.StatusBadRequest, "keyword is required")
		return
	}

	env, err := h.client.Search(r.Context(), utils.NormalizeKeyword(keyword), listOptions(r))
	if err != nil {
		log.Printf("[catalog] search %q: %v", keyword, err)
		writeJSONError(w, http.StatusBadGateway, "search failed")
		return
	}

	h.respondListing(w, env)
}

// Details serves a single title with its episode servers.
func (h *CatalogHandler) Details(w http.ResponseWriter, r *http.Request) {
	// Clients sometimes send the full detail-page URL they navigated from
	// instead of the bare slug.
	slug := utils.ExtractSlug(mux.Vars(r)["slug"])

	detail, err := h.client.Details(r.Context(), slug)
	if err != nil {
		if errors.Is(err, catalog.ErrDetailNotFound) {
			writeJSONError(w, http.StatusNotFound, "title not found")
			return
		}
		log.Printf("[catalog] details %s: %v", slug, err)
		writeJSONError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}

	detail.PosterURL = h.images.URL(detail.PosterURL)
	detail.ThumbURL = h.images.URL(detail.ThumbURL)
	writeJSON(w, http.StatusOK, detail)
}

// Categories serves the genre taxonomy.
func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	list, err := h.client.Categories(r.Context())
	if err != nil {
		log.Printf("[catalog] categories: %v", err)
		writeJSONError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Countries serves the country taxonomy.
func (h *CatalogHandler) Countries(w http.ResponseWriter, r *http.Request) {
	list, err := h.client.Countries(r.Context())
	if err != nil {
		log.Printf("[catalog] countries: %v", err)
		writeJSONError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *CatalogHandler) respondListing(w http.ResponseWriter, env models.Envelope) {
	for i := range env.Items {
		env.Items[i].PosterURL = h.images.URL(env.Items[i].PosterURL)
		env.Items[i].ThumbURL = h.images.URL(env.Items[i].ThumbURL)
	}
	writeJSON(w, http.StatusOK, env)
}
