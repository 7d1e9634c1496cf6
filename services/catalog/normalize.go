package catalog

import (
	"encoding/json"
	"errors"

	"phimstream/models"
	"phimstream/utils"
)

// ErrDetailNotFound is returned when a detail response carries no movie
// document in any of the tolerated shapes.
var ErrDetailNotFound = errors.New("catalog: detail document not found in response")

// rawListing mirrors the upstream listing shapes. Different endpoints nest
// items and pagination at different depths; all candidates are decoded and
// Normalize picks the first present one.
type rawListing struct {
	Status     json.RawMessage     `json:"status"`
	Msg        string              `json:"msg"`
	Items      []models.CatalogItem `json:"items"`
	Pagination *models.Pagination   `json:"pagination"`
	Data       *rawListingData      `json:"data"`
}

type rawListingData struct {
	Items      []models.CatalogItem `json:"items"`
	Pagination *models.Pagination   `json:"pagination"`
	Params     *rawListingParams    `json:"params"`
}

type rawListingParams struct {
	Pagination *models.Pagination `json:"pagination"`
}

// Normalize maps a raw upstream listing response into the one stable
// envelope shape. It is total: malformed or non-object input degrades to an
// empty, well-formed envelope instead of failing, so downstream consumers
// always receive usable data.
//
// Probe order, first match wins:
//
//	items:      items, data.items
//	pagination: pagination, data.pagination, data.params.pagination
func Normalize(raw []byte) models.Envelope {
	env := models.Envelope{
		Items: []models.CatalogItem{},
		Raw:   json.RawMessage(raw),
	}

	var parsed rawListing
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return env
	}

	env.Status = statusBool(parsed.Status)
	env.Msg = parsed.Msg

	switch {
	case parsed.Items != nil:
		env.Items = parsed.Items
	case parsed.Data != nil && parsed.Data.Items != nil:
		env.Items = parsed.Data.Items
	}
	fillSlugs(env.Items)

	switch {
	case parsed.Pagination != nil:
		env.Pagination = clampPagination(*parsed.Pagination)
	case parsed.Data != nil && parsed.Data.Pagination != nil:
		env.Pagination = clampPagination(*parsed.Data.Pagination)
	case parsed.Data != nil && parsed.Data.Params != nil && parsed.Data.Params.Pagination != nil:
		env.Pagination = clampPagination(*parsed.Data.Params.Pagination)
	}

	return env
}

// clampPagination enforces 1 <= CurrentPage <= max(TotalPages, 1) on an
// upstream-reported position. The upstream occasionally reports page 0 or a
// page past the end.
func clampPagination(p models.Pagination) models.Pagination {
	last := p.TotalPages
	if last < 1 {
		last = 1
	}
	if p.CurrentPage < 1 {
		p.CurrentPage = 1
	}
	if p.CurrentPage > last {
		p.CurrentPage = last
	}
	return p
}

// fillSlugs derives a slug from the title for items the upstream served
// without one. The slug is the identifier everything downstream keys on, so
// a slugless item would be unsaveable and unlinkable.
func fillSlugs(items []models.CatalogItem) {
	for i := range items {
		if items[i].Slug == "" && items[i].Name != "" {
			items[i].Slug = utils.Slugify(items[i].Name)
		}
	}
}

// statusBool tolerates the two status encodings the upstream uses:
// a boolean and the string "success".
func statusBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s == "success" || s == "true"
	}
	return false
}

// rawDetail mirrors the two detail response shapes: movie/episodes at the
// root, or the same fields (or a combined item) nested under data.
type rawDetail struct {
	Status   json.RawMessage        `json:"status"`
	Msg      string                 `json:"msg"`
	Movie    *models.CatalogDetail  `json:"movie"`
	Episodes []models.EpisodeServer `json:"episodes"`
	Data     *rawDetailData         `json:"data"`
}

type rawDetailData struct {
	Movie    *models.CatalogDetail  `json:"movie"`
	Item     *models.CatalogDetail  `json:"item"`
	Episodes []models.EpisodeServer `json:"episodes"`
}

// AdaptDetail resolves the dual detail response shape at the boundary,
// returning one typed document. Root-level fields win over nested ones.
func AdaptDetail(raw []byte) (*models.CatalogDetail, error) {
	var parsed rawDetail
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}

	detail := parsed.Movie
	episodes := parsed.Episodes
	if detail == nil && parsed.Data != nil {
		detail = parsed.Data.Movie
		if detail == nil {
			detail = parsed.Data.Item
		}
		if episodes == nil {
			episodes = parsed.Data.Episodes
		}
	}
	if detail == nil {
		return nil, ErrDetailNotFound
	}
	if detail.Slug == "" && detail.Name != "" {
		detail.Slug = utils.Slugify(detail.Name)
	}
	if len(detail.Episodes) == 0 && len(episodes) > 0 {
		detail.Episodes = episodes
	}
	return detail, nil
}
