package images

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"phimstream/models"
)

const (
	// defaultStagger spaces out batch dispatches so a page-transition burst
	// does not saturate the network.
	defaultStagger = 50 * time.Millisecond

	defaultBatchConcurrency = 3
	defaultBatchLimit       = 6
)

// FetchFunc transfers the bytes of one image URL. Failures are terminal for
// that URL; the prefetcher never retries.
type FetchFunc func(ctx context.Context, url string) error

// ProxyFetch returns a FetchFunc that warms proxy's cache. Builder output
// (/image.php?url=...&w=...) is unwrapped back into its source URL and
// options so the fetch fills the exact cache entry a later display request
// will hit; absolute URLs go through with default options. Proxy.Get
// validates the source either way, so a hint URL pointing at anything but
// an http(s) origin is rejected before a request is made.
func ProxyFetch(proxy *Proxy) FetchFunc {
	return func(ctx context.Context, raw string) error {
		src, opts, err := unwrapProxyURL(raw)
		if err != nil {
			return err
		}
		_, _, err = proxy.Get(ctx, src, opts)
		return err
	}
}

// unwrapProxyURL splits a builder-produced proxy URL into its source URL and
// resize options. Anything not shaped like builder output passes through
// unchanged.
func unwrapProxyURL(raw string) (string, Options, error) {
	if !strings.HasPrefix(raw, ProxyPath+"?") {
		return raw, Options{}, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", Options{}, err
	}
	q := parsed.Query()
	src := q.Get("url")
	if src == "" {
		return "", Options{}, errors.New("images: proxied url carries no source")
	}
	opts := Options{}
	if v, err := strconv.Atoi(q.Get("q")); err == nil {
		opts.Quality = v
	}
	if v, err := strconv.Atoi(q.Get("w")); err == nil {
		opts.Width = v
	}
	if v, err := strconv.Atoi(q.Get("h")); err == nil {
		opts.Height = v
	}
	return src, opts, nil
}

// Prefetcher decides when an image's bytes begin transferring, independent
// of when it is displayed. A resolved URL is dispatched at most once
// process-wide; Reset clears that memory for test isolation.
type Prefetcher struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	fetch   FetchFunc
	stagger time.Duration
}

// NewPrefetcher creates a prefetcher around fetch. A nil fetch leaves the
// prefetcher unbound: dispatches are dropped without being remembered until
// Bind installs a real fetch.
func NewPrefetcher(fetch FetchFunc) *Prefetcher {
	return &Prefetcher{
		seen:    make(map[string]struct{}),
		fetch:   fetch,
		stagger: defaultStagger,
	}
}

// Bind installs the fetch implementation. The process-wide Default starts
// unbound and is bound to the image proxy at startup.
func (p *Prefetcher) Bind(fetch FetchFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetch = fetch
}

// Prefetch transfers one URL immediately (the priority path). It reports
// whether a fetch was actually dispatched; duplicates, empty URLs, and an
// unbound prefetcher are skipped. A failed fetch stays marked as attempted:
// terminal, no retry.
func (p *Prefetcher) Prefetch(ctx context.Context, url string) bool {
	if url == "" {
		return false
	}
	p.mu.Lock()
	fetch := p.fetch
	if fetch == nil {
		p.mu.Unlock()
		return false
	}
	if _, dup := p.seen[url]; dup {
		p.mu.Unlock()
		return false
	}
	p.seen[url] = struct{}{}
	p.mu.Unlock()

	if err := fetch(ctx, url); err != nil {
		log.Printf("[images] prefetch %s failed: %v", url, err)
	}
	return true
}

// PrefetchBatch transfers a list of URLs with bounded concurrency and a
// small stagger between dispatches. Blocks until all dispatched fetches
// finish.
func (p *Prefetcher) PrefetchBatch(ctx context.Context, urls []string, concurrency int) {
	if concurrency < 1 {
		concurrency = defaultBatchConcurrency
	}
	workers := pool.New().WithMaxGoroutines(concurrency)
	for i, u := range urls {
		u := u
		if i > 0 {
			time.Sleep(p.stagger)
		}
		workers.Go(func() {
			p.Prefetch(ctx, u)
		})
	}
	workers.Wait()
}

// PrefetchItems warms the first limit poster (or thumb) images of a listing,
// as happens after an above-the-fold section resolves.
func (p *Prefetcher) PrefetchItems(ctx context.Context, b *Builder, items []models.CatalogItem, useThumb bool, limit int) {
	if limit < 1 {
		limit = defaultBatchLimit
	}
	urls := make([]string, 0, limit)
	for _, item := range items {
		if len(urls) == limit {
			break
		}
		raw := item.PosterURL
		if useThumb {
			raw = item.ThumbURL
		}
		if raw == "" {
			continue
		}
		urls = append(urls, b.URL(raw))
	}
	p.PrefetchBatch(ctx, urls, 2)
}

// Reset clears the de-duplication memory. In-memory only, so a process
// restart resets it implicitly; tests call it explicitly.
func (p *Prefetcher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = make(map[string]struct{})
}

// Default is the process-wide prefetcher used by the handlers. It starts
// unbound; main binds it to the image proxy once that exists.
var Default = NewPrefetcher(nil)
