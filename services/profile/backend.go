package profile

import (
	"context"
	"fmt"
	"log"

	"phimstream/models"
	"phimstream/services/history"
	"phimstream/services/library"
	"phimstream/services/remote"
)

// Backend is one profile's persistence surface. Anonymous profiles are
// backed by local JSON stores; signed-in accounts by the hosted gateway.
// Callers never need to know which one they hold.
type Backend interface {
	Library(ctx context.Context) ([]models.SavedEntry, error)
	SaveToLibrary(ctx context.Context, item models.CatalogItem) error
	RemoveFromLibrary(ctx context.Context, slug string) error
	IsSaved(ctx context.Context, slug string) (bool, error)
	History(ctx context.Context) ([]models.HistoryEntry, error)
	RecordWatch(ctx context.Context, item models.CatalogItem, episode string, progressSeconds float64) error
	RemoveFromHistory(ctx context.Context, slug string) error
}

// Selector hands out the right Backend for a request.
type Selector struct {
	library *library.Store
	history *history.Store
	gateway remote.GatewayInterface
}

func NewSelector(lib *library.Store, hist *history.Store, gw remote.GatewayInterface) *Selector {
	return &Selector{library: lib, history: hist, gateway: gw}
}

// Resolve picks the hosted backend when the request carries a valid
// session and a gateway is configured, the local one otherwise.
func (s *Selector) Resolve(session *models.Session, profileID string) Backend {
	if session != nil && s.gateway != nil {
		return &remoteBackend{gateway: s.gateway, userID: session.AccountID}
	}
	return &localBackend{library: s.library, history: s.history, profileID: profileID}
}

type localBackend struct {
	library   *library.Store
	history   *history.Store
	profileID string
}

var _ Backend = (*localBackend)(nil)

// The local stores degrade instead of erroring, so reads never fail and
// writes only surface a generic failure.
func (b *localBackend) Library(ctx context.Context) ([]models.SavedEntry, error) {
	return b.library.List(b.profileID), nil
}

func (b *localBackend) SaveToLibrary(ctx context.Context, item models.CatalogItem) error {
	if b.library.IsSaved(b.profileID, item.Slug) {
		return nil // saving twice is a no-op, same as the hosted gateway
	}
	if !b.library.Save(b.profileID, item) {
		return fmt.Errorf("save %q: local store write failed", item.Slug)
	}
	return nil
}

func (b *localBackend) RemoveFromLibrary(ctx context.Context, slug string) error {
	if !b.library.IsSaved(b.profileID, slug) {
		return remote.ErrNotFound
	}
	if !b.library.Remove(b.profileID, slug) {
		return fmt.Errorf("remove %q: local store write failed", slug)
	}
	return nil
}

func (b *localBackend) IsSaved(ctx context.Context, slug string) (bool, error) {
	return b.library.IsSaved(b.profileID, slug), nil
}

func (b *localBackend) History(ctx context.Context) ([]models.HistoryEntry, error) {
	return b.history.List(b.profileID), nil
}

func (b *localBackend) RecordWatch(ctx context.Context, item models.CatalogItem, episode string, progressSeconds float64) error {
	if !b.history.Record(b.profileID, item, episode, progressSeconds) {
		return fmt.Errorf("record %q: local store write failed", item.Slug)
	}
	return nil
}

func (b *localBackend) RemoveFromHistory(ctx context.Context, slug string) error {
	if b.history.Progress(b.profileID, slug) == nil {
		return remote.ErrNotFound
	}
	if !b.history.Remove(b.profileID, slug) {
		return fmt.Errorf("remove %q: local store write failed", slug)
	}
	return nil
}

type remoteBackend struct {
	gateway remote.GatewayInterface
	userID  string
}

var _ Backend = (*remoteBackend)(nil)

func (b *remoteBackend) Library(ctx context.Context) ([]models.SavedEntry, error) {
	rows, err := b.gateway.ListLibrary(ctx, b.userID)
	if err != nil {
		return nil, err
	}
	entries := make([]models.SavedEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, models.SavedEntry{CatalogItem: r.Movie, SavedAt: r.SavedAt})
	}
	return entries, nil
}

func (b *remoteBackend) SaveToLibrary(ctx context.Context, item models.CatalogItem) error {
	return b.gateway.AddToLibrary(ctx, b.userID, item)
}

func (b *remoteBackend) RemoveFromLibrary(ctx context.Context, slug string) error {
	return b.gateway.RemoveFromLibrary(ctx, b.userID, slug)
}

func (b *remoteBackend) IsSaved(ctx context.Context, slug string) (bool, error) {
	return b.gateway.IsSaved(ctx, b.userID, slug)
}

func (b *remoteBackend) History(ctx context.Context) ([]models.HistoryEntry, error) {
	rows, _, err := b.gateway.ListHistory(ctx, b.userID, 1, 100)
	if err != nil {
		return nil, err
	}
	entries := make([]models.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, models.HistoryEntry{
			CatalogItem:    r.Movie,
			WatchedAt:      r.WatchedAt,
			CurrentEpisode: r.EpisodeName,
		})
	}
	return entries, nil
}

func (b *remoteBackend) RecordWatch(ctx context.Context, item models.CatalogItem, episode string, progressSeconds float64) error {
	return b.gateway.AddToHistory(ctx, b.userID, item, episode)
}

// RemoveFromHistory resolves the slug to its hosted row before deleting,
// so the handler surface stays slug-addressed for both backends.
func (b *remoteBackend) RemoveFromHistory(ctx context.Context, slug string) error {
	rows, _, err := b.gateway.ListHistory(ctx, b.userID, 1, 100)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.Movie.Slug == slug {
			return b.gateway.RemoveFromHistory(ctx, b.userID, r.ID)
		}
	}
	log.Printf("[profile] history entry %q not found for account %s", slug, b.userID)
	return remote.ErrNotFound
}
