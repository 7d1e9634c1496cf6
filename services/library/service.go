package library

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

const fileName = "saved_movies.json"

// Store keeps each profile's saved-movies library as one JSON array
// document, read and written wholesale. Operations are best-effort: storage
// failures are logged and degrade to a safe default, never surfaced to the
// caller as an error.
type Store struct {
	mu  sync.Mutex
	fs  afero.Fs
	dir string
}

// NewStore creates a library store rooted at dir. A nil fs uses the OS
// filesystem; tests pass afero.NewMemMapFs().
func NewStore(fs afero.Fs, dir string) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs: fs, dir: dir}
}

// List returns the profile's saved entries, most recently saved first.
func (s *Store) List(profileID string) []models.SavedEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(profileID)
}

// Save adds an item to the library unless its slug is already present.
// Reports whether the item was added.
func (s *Store) Save(profileID string, item models.CatalogItem) bool {
	if item.Slug == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.read(profileID)
	for _, e := range entries {
		if e.Slug == item.Slug {
			return false
		}
	}
	entries = append([]models.SavedEntry{{CatalogItem: item, SavedAt: time.Now().UTC()}}, entries...)
	return s.write(profileID, entries)
}

// Remove deletes the entry with the given slug, if present.
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
		return true // nothing to remove is still success
	}
	return s.write(profileID, kept)
}

// IsSaved reports whether the profile has saved the slug.
func (s *Store) IsSaved(profileID, slug string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.read(profileID) {
		if e.Slug == slug {
			return true
		}
	}
	return false
}

// Clear removes the profile's entire library.
func (s *Store) Clear(profileID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(profileID, []models.SavedEntry{})
}

func (s *Store) path(profileID string) string {
	return filepath.Join(s.dir, profileKey(profileID), fileName)
}

func (s *Store) read(profileID string) []models.SavedEntry {
	data, err := afero.ReadFile(s.fs, s.path(profileID))
	if err != nil {
		return []models.SavedEntry{}
	}
	var entries []models.SavedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Printf("[library] corrupt document for profile %s: %v", profileID, err)
		return []models.SavedEntry{}
	}
	return entries
}

func (s *Store) write(profileID string, entries []models.SavedEntry) bool {
	path := s.path(profileID)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("[library] create profile dir: %v", err)
		return false
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		log.Printf("[library] encode document: %v", err)
		return false
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		log.Printf("[library] write document: %v", err)
		return false
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		log.Printf("[library] replace document: %v", err)
		return false
	}
	return true
}

// profileKey makes a client-supplied profile ID filesystem-safe.
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
