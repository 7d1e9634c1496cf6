package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"phimstream/services/images"
)

// ImagesHandler serves proxied poster images and accepts preload hints.
type ImagesHandler struct {
	proxy    *images.Proxy
	prefetch *images.Prefetcher
}

func NewImagesHandler(proxy *images.Proxy, prefetch *images.Prefetcher) *ImagesHandler {
	return &ImagesHandler{proxy: proxy, prefetch: prefetch}
}

// Serve handles GET /image.php?url=...&q=...&w=...&h=... It fetches the
// origin image, optionally transcodes it, and serves it with long-lived
// cache headers since catalog art is immutable per URL.
func (h *ImagesHandler) Serve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rawURL := strings.TrimSpace(q.Get("url"))
	if rawURL == "" {
		writeJSONError(w, http.StatusBadRequest, "url is required")
		return
	}

	opts := images.Options{}
	if v, err := strconv.Atoi(q.Get("q")); err == nil {
		opts.Quality = v
	}
	if v, err := strconv.Atoi(q.Get("w")); err == nil {
		opts.Width = v
	}
	if v, err := strconv.Atoi(q.Get("h")); err == nil {
		opts.Height = v
	}

	data, contentType, err := h.proxy.Get(r.Context(), rawURL, opts)
	if err != nil {
		log.Printf("[images] proxy %s: %v", rawURL, err)
		writeJSONError(w, http.StatusBadGateway, "image unavailable")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=604800, immutable")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// PrefetchRequest is a client hint listing image URLs it will need soon.
type PrefetchRequest struct {
	URLs []string `json:"urls"`
}

const maxPrefetchURLs = 24

// Prefetch handles POST /api/images/prefetch. The work happens in the
// background; the response only acknowledges the hint.
func (h *ImagesHandler) Prefetch(w http.ResponseWriter, r *http.Request) {
	var req PrefetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	if len(req.URLs) > maxPrefetchURLs {
		req.URLs = req.URLs[:maxPrefetchURLs]
	}

	// The request context dies with the response; the fetches should not.
	go h.prefetch.PrefetchBatch(context.Background(), req.URLs, 0)

	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(req.URLs)})
}
