package models

import "time"

// Session represents an authenticated session. Its presence is the switch
// between the local (anonymous) and remote (authenticated) persistence paths.
type Session struct {
	Token     string    `json:"token"`
	AccountID string    `json:"accountId"`
	Username  string    `json:"username,omitempty"`
	IsMaster  bool      `json:"isMaster"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsExpired returns true if the session has expired.
func (s Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
