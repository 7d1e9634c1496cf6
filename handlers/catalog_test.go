package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"phimstream/models"
	"phimstream/services/catalog"
	"phimstream/services/images"
)

func setupCatalogHandler(t *testing.T, upstream http.HandlerFunc) (*CatalogHandler, *mux.Router) {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	client := catalog.NewClient(srv.URL, srv.Client(), t.TempDir(), 1)
	builder := images.NewBuilder("https://img.example.com", "/placeholder.jpg")
	h := NewCatalogHandler(client, builder)

	r := mux.NewRouter()
	r.HandleFunc("/api/catalog/latest", h.Latest).Methods(http.MethodGet)
	r.HandleFunc("/api/catalog/search", h.Search).Methods(http.MethodGet)
	r.HandleFunc("/api/catalog/type/{type}", h.ByType).Methods(http.MethodGet)
	r.HandleFunc("/api/catalog/details/{slug}", h.Details).Methods(http.MethodGet)
	return h, r
}

func TestLatestDecoratesImageURLs(t *testing.T) {
	_, router := setupCatalogHandler(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"items": []map[string]any{
				{"slug": "dark-city", "name": "Dark City", "poster_url": "upload/dark-city.jpg"},
			},
		})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/catalog/latest", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var env models.Envelope
	json.Unmarshal(rec.Body.Bytes(), &env)
	if len(env.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(env.Items))
	}
	poster := env.Items[0].PosterURL
	if !strings.HasPrefix(poster, images.ProxyPath+"?") {
		t.Errorf("poster not proxied: %q", poster)
	}
	if !strings.Contains(poster, "img.example.com") {
		t.Errorf("relative path not rebased: %q", poster)
	}
}

func TestSearchRequiresKeyword(t *testing.T) {
	_, router := setupCatalogHandler(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream should not be called")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/catalog/search", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSearchDoesNotFallBack(t *testing.T) {
	_, router := setupCatalogHandler(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/catalog/search?keyword=city", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestByTypeFallsBackToLatest(t *testing.T) {
	_, router := setupCatalogHandler(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "danh-sach/phim-le") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"items":  []map[string]any{{"slug": "fresh", "name": "Fresh"}},
		})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/catalog/type/phim-le", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var env models.Envelope
	json.Unmarshal(rec.Body.Bytes(), &env)
	if !env.Fallback {
		t.Error("substitute listing not tagged as fallback")
	}
	if len(env.Items) != 1 || env.Items[0].Slug != "fresh" {
		t.Fatalf("unexpected items: %+v", env.Items)
	}
}

func TestDetailsAcceptsFullPageURL(t *testing.T) {
	h, _ := setupCatalogHandler(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "http") {
			t.Errorf("page URL leaked upstream: %s", r.URL.Path)
		}
		if !strings.HasSuffix(r.URL.Path, "/one-piece") {
			t.Errorf("expected bare slug in upstream path, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"movie":  map[string]any{"slug": "one-piece", "name": "One Piece"},
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/catalog/details/x", nil)
	req = mux.SetURLVars(req, map[string]string{"slug": "https://phimapi.com/phim/one-piece"})
	rec := httptest.NewRecorder()
	h.Details(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var detail models.CatalogDetail
	json.Unmarshal(rec.Body.Bytes(), &detail)
	if detail.Slug != "one-piece" {
		t.Fatalf("slug = %q, want one-piece", detail.Slug)
	}
}

func TestDetailsNotFound(t *testing.T) {
	_, router := setupCatalogHandler(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": false, "msg": "not found"})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/catalog/details/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
