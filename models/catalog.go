package models

import "encoding/json"

// Taxonomy is a category or country entry from the catalog service.
type Taxonomy struct {
	ID   string `json:"_id,omitempty"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CatalogItem is a movie/series summary as served by the catalog listings.
// Items are read-only from the API's perspective and are never mutated locally;
// the slug is the stable identifier used everywhere downstream.
type CatalogItem struct {
	Slug           string     `json:"slug"`
	Name           string     `json:"name"`
	OriginName     string     `json:"origin_name,omitempty"`
	PosterURL      string     `json:"poster_url,omitempty"`
	ThumbURL       string     `json:"thumb_url,omitempty"`
	Year           int        `json:"year,omitempty"`
	Category       []Taxonomy `json:"category,omitempty"`
	Country        []Taxonomy `json:"country,omitempty"`
	EpisodeCurrent string     `json:"episode_current,omitempty"`
	Quality        string     `json:"quality,omitempty"`
	Lang           string     `json:"lang,omitempty"`
	Type           string     `json:"type,omitempty"`
}

// Episode is a single playable entry within an episode server.
type Episode struct {
	Name      string `json:"name"`
	Slug      string `json:"slug,omitempty"`
	Filename  string `json:"filename,omitempty"`
	LinkEmbed string `json:"link_embed"`
	LinkM3U8  string `json:"link_m3u8,omitempty"`
}

// EpisodeServer is one streaming server's ordered episode list.
type EpisodeServer struct {
	ServerName string    `json:"server_name"`
	ServerData []Episode `json:"server_data"`
}

// CatalogDetail is the full document for one title, fetched per detail view.
type CatalogDetail struct {
	CatalogItem
	Content    string          `json:"content,omitempty"`
	Actor      []string        `json:"actor,omitempty"`
	Director   []string        `json:"director,omitempty"`
	TrailerURL string          `json:"trailer_url,omitempty"`
	Episodes   []EpisodeServer `json:"episodes,omitempty"`
}

// Pagination describes the page position of a listing response.
// Invariant: 1 <= CurrentPage <= max(TotalPages, 1).
type Pagination struct {
	TotalItems        int `json:"totalItems,omitempty"`
	TotalItemsPerPage int `json:"totalItemsPerPage,omitempty"`
	CurrentPage       int `json:"currentPage,omitempty"`
	TotalPages        int `json:"totalPages,omitempty"`
}

// Envelope is the one stable listing shape produced by the normalizer
// regardless of which upstream endpoint shape was used. Fallback marks
// envelopes that were served by the degrade-to-latest path so callers and
// tests can tell real data from fallback data.
type Envelope struct {
	Status     bool            `json:"status"`
	Msg        string          `json:"msg,omitempty"`
	Items      []CatalogItem   `json:"items"`
	Pagination Pagination      `json:"pagination"`
	Fallback   bool            `json:"fallback,omitempty"`
	Raw        json.RawMessage `json:"-"`
}
