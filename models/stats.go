package models

import "time"

// Achievement is unlocked when a watch-count threshold is crossed.
type Achievement struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UnlockedAt  time.Time `json:"unlockedAt"`
}

// UserStats aggregates a profile's viewing activity.
type UserStats struct {
	TotalMoviesWatched int            `json:"totalMoviesWatched"`
	TotalWatchTime     int            `json:"totalWatchTime"` // minutes
	FavoriteGenres     map[string]int `json:"favoriteGenres"`
	FavoriteCountries  map[string]int `json:"favoriteCountries"`
	JoinedDate         time.Time      `json:"joinedDate"`
	Achievements       []Achievement  `json:"achievements"`
}

// NewUserStats returns an empty stats document with the join date set.
func NewUserStats() UserStats {
	return UserStats{
		FavoriteGenres:    make(map[string]int),
		FavoriteCountries: make(map[string]int),
		JoinedDate:        time.Now().UTC(),
		Achievements:      []Achievement{},
	}
}
