package models

import "time"

// SavedEntry is one title in a profile's library. Unique per profile per slug.
type SavedEntry struct {
	CatalogItem
	SavedAt time.Time `json:"savedAt"`
}

// HistoryEntry records that a profile watched (part of) a title.
// Entries are kept most-recent-first and deduplicated by slug.
type HistoryEntry struct {
	CatalogItem
	WatchedAt      time.Time `json:"watchedAt"`
	CurrentEpisode string    `json:"currentEpisode,omitempty"`
	// Progress is playback position in seconds within the current episode.
	Progress float64 `json:"progress,omitempty"`
}

// RemoteSavedEntry is a library row from the remote persistence gateway.
type RemoteSavedEntry struct {
	ID      string    `json:"id"`
	MovieID string    `json:"movieId"`
	SavedAt time.Time `json:"savedAt"`
	Movie   CatalogItem `json:"movie"`
}

// RemoteHistoryEntry is a watch history row from the remote persistence gateway.
type RemoteHistoryEntry struct {
	ID          string    `json:"id"`
	MovieID     string    `json:"movieId"`
	EpisodeName string    `json:"episodeName,omitempty"`
	WatchedAt   time.Time `json:"watchedAt"`
	Movie       CatalogItem `json:"movie"`
}
