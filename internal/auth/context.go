package auth

import (
	"net/http"
	"strings"

	"phimstream/models"
)

// ContextKey is the type used for context keys
type ContextKey string

const (
	// ContextKeyAccountID is the key for the account ID in the context
	ContextKeyAccountID ContextKey = "accountID"
	// ContextKeyIsMaster is the key for the master flag in the context
	ContextKeyIsMaster ContextKey = "isMaster"
	// ContextKeySession is the key for the session in the context
	ContextKeySession ContextKey = "session"
)

// ProfileHeader carries the anonymous device profile ID. It is only
// honored when the request has no session.
const ProfileHeader = "X-Profile-ID"

// GetAccountID retrieves the authenticated account ID from the request context.
func GetAccountID(r *http.Request) string {
	if id, ok := r.Context().Value(ContextKeyAccountID).(string); ok {
		return id
	}
	return ""
}

// IsMaster checks if the authenticated account is a master account.
func IsMaster(r *http.Request) bool {
	if isMaster, ok := r.Context().Value(ContextKeyIsMaster).(bool); ok {
		return isMaster
	}
	return false
}

// GetSession retrieves the validated session from the request context, or
// nil for anonymous requests.
func GetSession(r *http.Request) *models.Session {
	if session, ok := r.Context().Value(ContextKeySession).(models.Session); ok {
		return &session
	}
	return nil
}

// ProfileID returns the anonymous profile identifier for the request,
// falling back to "default" when the header is absent.
func ProfileID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(ProfileHeader)); id != "" {
		return id
	}
	return "default"
}
