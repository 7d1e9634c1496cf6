package stats

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
	statsFileName   = "user_stats.json"
	ratingsFileName = "user_ratings.json"
)

// Rating is a profile's rating and optional review for one title.
type Rating struct {
	Rating  int       `json:"rating"`
	Review  string    `json:"review,omitempty"`
	RatedAt time.Time `json:"ratedAt"`
}

// GenreCount is one entry of a top-genres/top-countries summary.
type GenreCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Store keeps per-profile viewing stats and ratings as JSON documents.
// Best-effort like the other local stores: failures degrade, never propagate.
type Store struct {
	mu  sync.Mutex
	fs  afero.Fs
	dir string
}

// NewStore creates a stats store rooted at dir. A nil fs uses the OS
// filesystem.
func NewStore(fs afero.Fs, dir string) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs: fs, dir: dir}
}

// Get returns the profile's stats, initializing an empty document on first use.
func (s *Store) Get(profileID string) models.UserStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(profileID)
}

// RecordWatch updates totals, favorite genre/country counters and
// achievements for one watched title, and returns the updated stats.
func (s *Store) RecordWatch(profileID string, item models.CatalogItem, watchMinutes int) models.UserStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.read(profileID)
	st.TotalMoviesWatched++
	if watchMinutes > 0 {
		st.TotalWatchTime += watchMinutes
	}
	for _, c := range item.Category {
		if c.Name != "" {
			st.FavoriteGenres[c.Name]++
		}
	}
	for _, c := range item.Country {
		if c.Name != "" {
			st.FavoriteCountries[c.Name]++
		}
	}
	unlockAchievements(&st)

	s.writeStats(profileID, st)
	return st
}

// achievement thresholds mirror the profile page badges.
var achievementDefs = []struct {
	id, name, description string
	unlocked              func(models.UserStats) bool
}{
	{"beginner", "Getting Started", "Watch 10 titles", func(st models.UserStats) bool { return st.TotalMoviesWatched >= 10 }},
	{"moviefan", "Movie Fan", "Watch 50 titles", func(st models.UserStats) bool { return st.TotalMoviesWatched >= 50 }},
	{"cinephile", "Cinephile", "Watch 100 titles", func(st models.UserStats) bool { return st.TotalMoviesWatched >= 100 }},
	{"marathon", "Marathon", "Watch more than 10 hours", func(st models.UserStats) bool { return st.TotalWatchTime >= 600 }},
}

func unlockAchievements(st *models.UserStats) {
	has := make(map[string]bool, len(st.Achievements))
	for _, a := range st.Achievements {
		has[a.ID] = true
	}
	for _, def := range achievementDefs {
		if !has[def.id] && def.unlocked(*st) {
			st.Achievements = append(st.Achievements, models.Achievement{
				ID:          def.id,
				Name:        def.name,
				Description: def.description,
				UnlockedAt:  time.Now().UTC(),
			})
		}
	}
}

// TopGenres returns the profile's most-watched genres, highest count first.
func (s *Store) TopGenres(profileID string, limit int) []GenreCount {
	st := s.Get(profileID)
	return topCounts(st.FavoriteGenres, limit)
}

// TopCountries returns the profile's most-watched countries.
func (s *Store) TopCountries(profileID string, limit int) []GenreCount {
	st := s.Get(profileID)
	return topCounts(st.FavoriteCountries, limit)
}

func topCounts(m map[string]int, limit int) []GenreCount {
	if limit < 1 {
		limit = 5
	}
	out := make([]GenreCount, 0, len(m))
	for name, count := range m {
		out = append(out, GenreCount{Name: name, Count: count})
	}
	// insertion sort; the maps hold at most a few dozen entries
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Count > out[j-1].Count; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Rate records a rating (1-5) and optional review for a title.
func (s *Store) Rate(profileID, slug string, rating int, review string) bool {
	if slug == "" || rating < 1 || rating > 5 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ratings := s.readRatings(profileID)
	ratings[slug] = Rating{Rating: rating, Review: review, RatedAt: time.Now().UTC()}
	return s.writeDoc(profileID, ratingsFileName, ratings)
}

// RatingFor returns the profile's rating for slug, or nil.
func (s *Store) RatingFor(profileID, slug string) *Rating {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.readRatings(profileID)[slug]; ok {
		return &r
	}
	return nil
}

func (s *Store) read(profileID string) models.UserStats {
	data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, profileKey(profileID), statsFileName))
	if err != nil {
		return models.NewUserStats()
	}
	var st models.UserStats
	if err := json.Unmarshal(data, &st); err != nil {
		log.Printf("[stats] corrupt stats for profile %s: %v", profileID, err)
		return models.NewUserStats()
	}
	if st.FavoriteGenres == nil {
		st.FavoriteGenres = make(map[string]int)
	}
	if st.FavoriteCountries == nil {
		st.FavoriteCountries = make(map[string]int)
	}
	return st
}

func (s *Store) readRatings(profileID string) map[string]Rating {
	data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, profileKey(profileID), ratingsFileName))
	if err != nil {
		return map[string]Rating{}
	}
	var ratings map[string]Rating
	if err := json.Unmarshal(data, &ratings); err != nil {
		log.Printf("[stats] corrupt ratings for profile %s: %v", profileID, err)
		return map[string]Rating{}
	}
	return ratings
}

func (s *Store) writeStats(profileID string, st models.UserStats) bool {
	return s.writeDoc(profileID, statsFileName, st)
}

func (s *Store) writeDoc(profileID, name string, v any) bool {
	path := filepath.Join(s.dir, profileKey(profileID), name)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("[stats] create profile dir: %v", err)
		return false
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("[stats] encode document: %v", err)
		return false
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		log.Printf("[stats] write document: %v", err)
		return false
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		log.Printf("[stats] replace document: %v", err)
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
