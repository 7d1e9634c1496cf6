package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"

	"phimstream/models"
)

const (
	// latestType is accepted by callers as a listing type but is not a valid
	// value for the by-type endpoint; it is rerouted to the latest listing.
	latestType = "phim-moi-cap-nhat"

	latestPath = "/danh-sach/phim-moi-cap-nhat"
	byTypePath = "/v1/api/danh-sach/"
	searchPath = "/v1/api/tim-kiem"
	detailPath = "/phim/"

	categoriesPath = "/the-loai"
	countriesPath  = "/quoc-gia"

	defaultLimit     = 24
	maxResponseBytes = 8 << 20
)

// StatusError reports a non-2xx response from the catalog service.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog: GET %s returned status %d", e.URL, e.StatusCode)
}

// ListOptions carries the filter/sort parameters shared by the by-type and
// search listings. Zero values are omitted from the request.
type ListOptions struct {
	Page      int
	Limit     int
	Category  string
	Country   string
	Year      string
	SortField string
	SortType  string
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	page := o.Page
	if page < 1 {
		page = 1
	}
	limit := o.Limit
	if limit < 1 {
		limit = defaultLimit
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if o.SortField != "" {
		q.Set("sort_field", o.SortField)
	}
	if o.SortType != "" {
		q.Set("sort_type", o.SortType)
	}
	if o.Category != "" {
		q.Set("category", o.Category)
	}
	if o.Country != "" {
		q.Set("country", o.Country)
	}
	if o.Year != "" {
		q.Set("year", o.Year)
	}
	return q
}

// Client issues typed requests against the catalog service and routes listing
// responses through the normalizer. Operations never retry and never cache
// listing data; concurrency and staleness are the caller's concern.
type Client struct {
	baseURL  string
	httpc    *http.Client
	taxonomy *fileCache
}

// NewClient creates a catalog client. cacheDir holds the taxonomy cache;
// pass an empty dir to disable it (tests).
func NewClient(baseURL string, httpc *http.Client, cacheDir string, ttlHours int) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	var cache *fileCache
	if cacheDir != "" {
		cache = newFileCache(cacheDir, ttlHours)
	}
	return &Client{baseURL: baseURL, httpc: httpc, taxonomy: cache}
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: GET %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: u, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", u, err)
	}
	return body, nil
}

// Latest fetches the most-recently-updated listing for a 1-based page.
// Unlike ByType there is no fallback here; callers surface a retry affordance.
func (c *Client) Latest(ctx context.Context, page int) (models.Envelope, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	body, err := c.get(ctx, latestPath, q)
	if err != nil {
		return models.Envelope{}, err
	}
	return Normalize(body), nil
}

// ByType fetches a filtered/sorted listing for a catalog type (phim-le,
// phim-bo, hoat-hinh, tv-shows). The pseudo-type phim-moi-cap-nhat is
// rerouted to Latest without touching the by-type endpoint. A non-2xx
// response degrades to Latest for the same page, with Envelope.Fallback set
// so callers can tell fallback data from real data. Transport errors still
// propagate.
func (c *Client) ByType(ctx context.Context, typeName string, opts ListOptions) (models.Envelope, error) {
	if typeName == latestType {
		return c.Latest(ctx, opts.Page)
	}

	body, err := c.get(ctx, byTypePath+url.PathEscape(typeName), opts.values())
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			log.Printf("[catalog] by-type %q failed with status %d, falling back to latest", typeName, statusErr.StatusCode)
			env, ferr := c.Latest(ctx, opts.Page)
			if ferr != nil {
				return models.Envelope{}, ferr
			}
			env.Fallback = true
			return env, nil
		}
		return models.Envelope{}, err
	}
	return Normalize(body), nil
}

// Search fetches a keyword listing with the same filters as ByType. It fails
// fast on any error; empty keywords are expected to be short-circuited by
// the caller.
func (c *Client) Search(ctx context.Context, keyword string, opts ListOptions) (models.Envelope, error) {
	q := opts.values()
	q.Set("keyword", keyword)
	body, err := c.get(ctx, searchPath, q)
	if err != nil {
		return models.Envelope{}, err
	}
	return Normalize(body), nil
}

// Details fetches one detail document by slug and resolves the dual response
// shape through AdaptDetail. Details are fetched fresh on every call.
func (c *Client) Details(ctx context.Context, slug string) (*models.CatalogDetail, error) {
	body, err := c.get(ctx, detailPath+url.PathEscape(slug), nil)
	if err != nil {
		return nil, err
	}
	return AdaptDetail(body)
}

// Categories fetches the category taxonomy, served from the TTL cache when warm.
func (c *Client) Categories(ctx context.Context) ([]models.Taxonomy, error) {
	return c.taxonomyList(ctx, categoriesPath, "categories")
}

// Countries fetches the country taxonomy, served from the TTL cache when warm.
func (c *Client) Countries(ctx context.Context) ([]models.Taxonomy, error) {
	return c.taxonomyList(ctx, countriesPath, "countries")
}

func (c *Client) taxonomyList(ctx context.Context, path, name string) ([]models.Taxonomy, error) {
	key := cacheKey("taxonomy", name)
	if c.taxonomy != nil {
		var cached []models.Taxonomy
		if ok, _ := c.taxonomy.get(key, &cached); ok && len(cached) > 0 {
			return cached, nil
		}
	}

	body, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	list := adaptTaxonomy(body)
	if c.taxonomy != nil && len(list) > 0 {
		if err := c.taxonomy.set(key, list); err != nil {
			log.Printf("[catalog] failed to cache %s: %v", name, err)
		}
	}
	return list, nil
}

// adaptTaxonomy tolerates both taxonomy shapes: a bare JSON array and a
// normalized listing envelope carrying the entries as items.
func adaptTaxonomy(raw []byte) []models.Taxonomy {
	var list []models.Taxonomy
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list
	}
	env := Normalize(raw)
	list = make([]models.Taxonomy, 0, len(env.Items))
	for _, item := range env.Items {
		list = append(list, models.Taxonomy{Name: item.Name, Slug: item.Slug})
	}
	return list
}

// WarmTaxonomies fetches categories and countries with backed-off retries so
// filter UIs have data even when the first upstream call hiccups at startup.
func (c *Client) WarmTaxonomies(ctx context.Context) error {
	return retry.Do(
		func() error {
			if _, err := c.Categories(ctx); err != nil {
				return err
			}
			if _, err := c.Countries(ctx); err != nil {
				return err
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}
