package history

import (
	"encoding/json"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"phimstream/models"
)

const (
	fileName = "watch_history.json"

	// MaxEntries bounds the local history document; the oldest entry is
	// evicted on overflow.
	MaxEntries = 50
)

// Progress is the resume position for one title.
type Progress struct {
	Episode string  `json:"episode,omitempty"`
	Seconds float64 `json:"seconds,omitempty"`
}

// Store keeps each profile's watch history as one bounded JSON array
// document, most-recent-first, deduplicated by slug. Like the library store
// it never propagates storage errors to callers.
type Store struct {
	mu  sync.Mutex
	fs  afero.Fs
	dir string
}

// NewStore creates a history store rooted at dir. A nil fs uses the OS
// filesystem.
func NewStore(fs afero.Fs, dir string) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs: fs, dir: dir}
}

// List returns the profile's history, most recently watched first.
func (s *Store) List(profileID string) []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(profileID)
}

// Record notes that the profile watched an episode of item. An existing
// entry for the same slug is removed before the new entry is prepended, so
// each title appears once with a fresh timestamp. The tail beyond MaxEntries
// is truncated.
func (s *Store) Record(profileID string, item models.CatalogItem, episode string, progressSeconds float64) bool {
	if item.Slug == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.read(profileID)
	kept := entries[:0]
	for _, e := range entries {
		if e.Slug != item.Slug {
			kept = append(kept, e)
		}
	}

	entry := models.HistoryEntry{
		CatalogItem:    item,
		WatchedAt:      time.Now().UTC(),
		CurrentEpisode: episode,
		Progress:       progressSeconds,
	}
	entries = append([]models.HistoryEntry{entry}, kept...)
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	return s.write(profileID, entries)
}

// Remove deletes the history entry for slug, if present.
func (s *Store) Remove(profileID, slug string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.read(profileID)
	kept := entries[:0]
	for _, e := range entries {
		if e.Slug != slug {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return true
	}
	return s.write(profileID, kept)
}

// Clear removes the profile's entire history.
func (s *Store) Clear(profileID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(profileID, []models.HistoryEntry{})
}

// Progress returns the resume position for slug, or nil when the title is
// not in the history.
func (s *Store) Progress(profileID, slug string) *Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.read(profileID) {
		if e.Slug == slug {
			return &Progress{Episode: e.CurrentEpisode, Seconds: e.Progress}
		}
	}
	return nil
}

func (s *Store) path(profileID string) string {
	return filepath.Join(s.dir, profileKey(profileID), fileName)
}

func (s *Store) read(profileID string) []models.HistoryEntry {
	data, err := afero.ReadFile(s.fs, s.path(profileID))
	if err != nil {
		return []models.HistoryEntry{}
	}
	var entries []models.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Printf("[history] corrupt document for profile %s: %v", profileID, err)
		return []models.HistoryEntry{}
	}
	return entries
}

func (s *Store) write(profileID string, entries []models.HistoryEntry) bool {
	path := s.path(profileID)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("[history] create profile dir: %v", err)
		return false
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		log.Printf("[history] encode document: %v", err)
		return false
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		log.Printf("[history] write document: %v", err)
		return false
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		log.Printf("[history] replace document: %v", err)
		return false
	}
	return true
}

func profileKey(profileID string) string {
	var b strings.Builder
	for _, r := range profileID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "default"
	}
	return b.String()
}
