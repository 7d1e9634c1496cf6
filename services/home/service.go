package home

import (
	"context"
	"log"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"phimstream/models"
	"phimstream/services/catalog"
	"phimstream/services/images"
)

// Lister is the slice of the catalog client the home page needs.
type Lister interface {
	Latest(ctx context.Context, page int) (models.Envelope, error)
	ByType(ctx context.Context, typeName string, opts catalog.ListOptions) (models.Envelope, error)
}

var _ Lister = (*catalog.Client)(nil)

// Section is one shelf on the home page.
type Section struct {
	Key      string              `json:"key"`
	Title    string              `json:"title"`
	Items    []models.CatalogItem `json:"items"`
	Fallback bool                `json:"fallback,omitempty"`
	Failed   bool                `json:"failed,omitempty"`
}

// Page is the aggregated home payload. Sections keep manifest order
// regardless of which upstream call finished first.
type Page struct {
	Sections []Section `json:"sections"`
	Stale    bool      `json:"-"`
}

type sectionSpec struct {
	key      string
	title    string
	latest   bool
	typeName string
	opts     catalog.ListOptions
}

// The shelf manifest. Order is presentation order; the first entry is
// above the fold and gets its posters prefetched.
var sections = []sectionSpec{
	{key: "latest", title: "Phim mới cập nhật", latest: true},
	{key: "korean-series", title: "Phim bộ Hàn Quốc", typeName: "phim-bo", opts: catalog.ListOptions{Country: "han-quoc", Limit: 10}},
	{key: "jp-anime", title: "Anime Nhật Bản", typeName: "hoat-hinh", opts: catalog.ListOptions{Country: "nhat-ban", Limit: 10}},
	{key: "movies", title: "Phim lẻ", typeName: "phim-le", opts: catalog.ListOptions{Limit: 4}},
	{key: "animation", title: "Hoạt hình", typeName: "hoat-hinh", opts: catalog.ListOptions{Limit: 12}},
	{key: "jp-anime-more", title: "Anime Nhật Bản (tiếp)", typeName: "hoat-hinh", opts: catalog.ListOptions{Country: "nhat-ban", Page: 2, Limit: 10}},
	{key: "action-series", title: "Phim bộ hành động", typeName: "phim-bo", opts: catalog.ListOptions{Category: "hanh-dong", Limit: 10}},
	{key: "romance-series", title: "Phim bộ tình cảm", typeName: "phim-bo", opts: catalog.ListOptions{Category: "tinh-cam", Limit: 10}},
	{key: "comedy-series", title: "Phim bộ hài hước", typeName: "phim-bo", opts: catalog.ListOptions{Category: "hai-huoc", Country: "nhat-ban", Limit: 10}},
}

const fetchConcurrency = 4

// Service builds the home page by fanning out one request per shelf.
type Service struct {
	catalog   Lister
	builder   *images.Builder
	prefetch  *images.Prefetcher
	sequencer *catalog.Sequencer
}

func NewService(c Lister, b *images.Builder, p *images.Prefetcher) *Service {
	return &Service{
		catalog:   c,
		builder:   b,
		prefetch:  p,
		sequencer: catalog.NewSequencer(),
	}
}

// Page fetches every shelf concurrently. A failed shelf comes back empty
// and flagged rather than failing the whole page; the aggregate only
// errors when the context is cancelled. Overlapping refreshes are
// serialized by sequence number so a stale response never wins.
func (s *Service) Page(ctx context.Context) (Page, error) {
	seq := s.sequencer.Begin("home")

	results := make([]Section, len(sections))
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(fetchConcurrency).WithContext(ctx)
	for i, spec := range sections {
		p.Go(func(ctx context.Context) error {
			sec := s.fetchSection(ctx, spec)
			mu.Lock()
			results[i] = sec
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return Page{}, err
	}
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	page := Page{Sections: results}
	if !s.sequencer.Latest("home", seq) {
		page.Stale = true
		return page, nil
	}

	if s.prefetch != nil && len(results) > 0 {
		go s.prefetch.PrefetchItems(context.Background(), s.builder, results[0].Items, true, 0)
	}
	return page, nil
}

func (s *Service) fetchSection(ctx context.Context, spec sectionSpec) Section {
	sec := Section{Key: spec.key, Title: spec.title, Items: []models.CatalogItem{}}

	var env models.Envelope
	var err error
	if spec.latest {
		env, err = s.catalog.Latest(ctx, 1)
	} else {
		env, err = s.catalog.ByType(ctx, spec.typeName, spec.opts)
	}
	if err != nil {
		log.Printf("[home] section %s failed: %v", spec.key, err)
		sec.Failed = true
		return sec
	}
	sec.Items = env.Items
	sec.Fallback = env.Fallback
	if s.builder != nil {
		for i := range sec.Items {
			sec.Items[i].PosterURL = s.builder.URL(sec.Items[i].PosterURL)
			sec.Items[i].ThumbURL = s.builder.URL(sec.Items[i].ThumbURL)
		}
	}
	return sec
}
