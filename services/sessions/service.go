package sessions

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/auth/v2/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"phimstream/models"
)

var (
	ErrSessionRevoked = errors.New("session revoked")
	ErrInvalidToken   = errors.New("invalid token")
	ErrSecretRequired = errors.New("session secret not provided")
)

const (
	// DefaultSessionDuration is the default lifetime of a session.
	DefaultSessionDuration = 30 * 24 * time.Hour // 30 days

	// PersistentSessionDuration is the lifetime of a "remember me" session.
	PersistentSessionDuration = 365 * 24 * time.Hour

	issuer = "phimstream"

	masterAttr = "is_master"
)

// Service mints and validates signed session tokens. Tokens are JWTs, so
// validation is stateless; only revocations need to be tracked, keyed by
// token ID and persisted to disk so logout survives restarts.
type Service struct {
	jwt      *token.Service
	duration time.Duration

	mu      sync.RWMutex
	path    string
	revoked map[string]time.Time // token ID -> token expiry
}

// NewService creates a sessions service signing with the given secret.
// storageDir is where the revocation list is stored; if empty, revocations
// live only in memory.
func NewService(storageDir, secret string, sessionDuration time.Duration) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSecretRequired
	}
	if sessionDuration <= 0 {
		sessionDuration = DefaultSessionDuration
	}

	svc := &Service{
		jwt: token.NewService(token.Opts{
			SecretReader: token.SecretFunc(func(string) (string, error) {
				return secret, nil
			}),
			TokenDuration:  sessionDuration,
			CookieDuration: sessionDuration,
			Issuer:         issuer,
			DisableXSRF:    true,
		}),
		duration: sessionDuration,
		revoked:  make(map[string]time.Time),
	}

	if strings.TrimSpace(storageDir) != "" {
		if err := os.MkdirAll(storageDir, 0o755); err != nil {
			return nil, fmt.Errorf("create sessions dir: %w", err)
		}
		svc.path = filepath.Join(storageDir, "revoked_sessions.json")
		if err := svc.load(); err != nil {
			return nil, err
		}
	}

	go svc.cleanupLoop()

	return svc, nil
}

// Create mints a session token for the given account.
func (s *Service) Create(accountID, username string, isMaster bool) (models.Session, error) {
	return s.CreateWithDuration(accountID, username, isMaster, s.duration)
}

// CreatePersistent mints a long-lived "remember me" session token.
func (s *Service) CreatePersistent(accountID, username string, isMaster bool) (models.Session, error) {
	return s.CreateWithDuration(accountID, username, isMaster, PersistentSessionDuration)
}

// CreateWithDuration mints a session token with a custom lifetime.
func (s *Service) CreateWithDuration(accountID, username string, isMaster bool, duration time.Duration) (models.Session, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(duration)

	user := token.User{ID: accountID, Name: username}
	user.SetBoolAttr(masterAttr, isMaster)

	claims := token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		User: &user,
	}

	signed, err := s.jwt.Token(claims)
	if err != nil {
		return models.Session{}, fmt.Errorf("sign session token: %w", err)
	}

	return models.Session{
		Token:     signed,
		AccountID: accountID,
		Username:  username,
		IsMaster:  isMaster,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// Validate checks a token's signature, expiry, and revocation status, and
// returns the session it encodes.
func (s *Service) Validate(tokenStr string) (models.Session, error) {
	if tokenStr == "" {
		return models.Session{}, ErrInvalidToken
	}

	claims, err := s.jwt.Parse(tokenStr)
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.User == nil || claims.ExpiresAt == nil {
		return models.Session{}, ErrInvalidToken
	}

	s.mu.RLock()
	_, revoked := s.revoked[claims.ID]
	s.mu.RUnlock()
	if revoked {
		return models.Session{}, ErrSessionRevoked
	}

	session := models.Session{
		Token:     tokenStr,
		AccountID: claims.User.ID,
		Username:  claims.User.Name,
		IsMaster:  claims.User.BoolAttr(masterAttr),
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.CreatedAt = claims.IssuedAt.Time
	}
	return session, nil
}

// Revoke invalidates a token before its natural expiry. Revoking an
// already invalid token is an error; revoking twice is not.
func (s *Service) Revoke(tokenStr string) error {
	claims, err := s.jwt.Parse(tokenStr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ExpiresAt == nil {
		return ErrInvalidToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[claims.ID] = claims.ExpiresAt.Time
	return s.saveLocked()
}

// Cleanup drops revocation entries whose tokens have expired on their own.
func (s *Service) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	now := time.Now()
	for id, expiresAt := range s.revoked {
		if now.After(expiresAt) {
			delete(s.revoked, id)
			count++
		}
	}
	if count > 0 {
		_ = s.saveLocked()
	}
	return count
}

func (s *Service) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		s.Cleanup()
	}
}

// RevokedCount returns the number of live revocation entries.
func (s *Service) RevokedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revoked)
}

// load reads the revocation list from disk, dropping entries whose tokens
// have already expired.
func (s *Service) load() error {
	if s.path == "" {
		return nil
	}

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open revocations file: %w", err)
	}
	defer file.Close()

	var stored map[string]time.Time
	if err := json.NewDecoder(file).Decode(&stored); err != nil {
		return fmt.Errorf("decode revocations: %w", err)
	}

	now := time.Now()
	s.revoked = make(map[string]time.Time, len(stored))
	for id, expiresAt := range stored {
		if now.After(expiresAt) {
			continue
		}
		s.revoked[id] = expiresAt
	}
	return nil
}

// saveLocked writes the revocation list to disk. Must be called with mu held.
func (s *Service) saveLocked() error {
	if s.path == "" {
		return nil
	}

	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create revocations temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.revoked); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode revocations: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync revocations: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close revocations temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace revocations file: %w", err)
	}
	return nil
}
