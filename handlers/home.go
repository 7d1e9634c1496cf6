package handlers

import (
	"log"
	"net/http"

	"phimstream/services/home"
)

// HomeHandler serves the aggregated home page.
type HomeHandler struct {
	home *home.Service
}

func NewHomeHandler(svc *home.Service) *HomeHandler {
	return &HomeHandler{home: svc}
}

// Page serves every shelf in one response. Individual shelf failures are
// flagged inside the payload rather than failing the request.
func (h *HomeHandler) Page(w http.ResponseWriter, r *http.Request) {
	page, err := h.home.Page(r.Context())
	if err != nil {
		log.Printf("[home] page: %v", err)
		writeJSONError(w, http.StatusBadGateway, "home page unavailable")
		return
	}
	writeJSON(w, http.StatusOK, page)
}
