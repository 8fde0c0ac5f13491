package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"eve-warehouse/internal/esi"
	"eve-warehouse/internal/logger"
)

// ErrNotLoggedIn means no usable token record is stored.
var ErrNotLoggedIn = errors.New("not logged in")

// refreshBuffer is how long before expiry a token is treated as expired.
const refreshBuffer = 60 * time.Second

// Session is the persisted token record.
type Session struct {
	CharacterID     int64
	CharacterName   string
	CorporationID   int64
	CorporationName string
	AccessToken     string
	RefreshToken    string
	ExpiresAt       time.Time
}

// Valid reports whether the record is structurally usable.
func (s *Session) Valid() bool {
	return s != nil && s.CharacterID > 0 && s.AccessToken != "" && s.RefreshToken != "" && !s.ExpiresAt.IsZero()
}

// Refresher exchanges a refresh token for a new access token. *SSOConfig implements it.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// SessionStore persists the single token record in SQLite and hands out valid
// access tokens. It implements esi.TokenSource.
type SessionStore struct {
	db  *sql.DB
	sso Refresher
	now func() time.Time

	mu     sync.Mutex
	loaded bool
	cached *Session
}

// NewSessionStore creates a store backed by the given SQL database. sso may be nil,
// in which case expired tokens cannot be refreshed.
func NewSessionStore(db *sql.DB, sso Refresher) *SessionStore {
	return &SessionStore{db: db, sso: sso, now: time.Now}
}

// Save replaces the stored record.
func (s *SessionStore) Save(sess *Session) error {
	if !sess.Valid() {
		return fmt.Errorf("save session: record is incomplete")
	}
	_, err := s.db.Exec(`
		INSERT INTO auth_session (id, character_id, character_name, corporation_id, corporation_name, access_token, refresh_token, expires_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			character_id = excluded.character_id,
			character_name = excluded.character_name,
			corporation_id = excluded.corporation_id,
			corporation_name = excluded.corporation_name,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at`,
		sess.CharacterID, sess.CharacterName, sess.CorporationID, sess.CorporationName,
		sess.AccessToken, sess.RefreshToken, sess.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	s.mu.Lock()
	cp := *sess
	s.cached, s.loaded = &cp, true
	s.mu.Unlock()
	return nil
}

// Get returns the stored record, or nil. A row that fails structural validation
// is deleted so the next login starts clean.
func (s *SessionStore) Get() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return copySession(s.cached)
	}

	var sess Session
	var expiresUnix int64
	err := s.db.QueryRow(`
		SELECT character_id, character_name, corporation_id, corporation_name, access_token, refresh_token, expires_at
		FROM auth_session WHERE id = 1`).
		Scan(&sess.CharacterID, &sess.CharacterName, &sess.CorporationID, &sess.CorporationName,
			&sess.AccessToken, &sess.RefreshToken, &expiresUnix)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.cached, s.loaded = nil, true
		return nil
	case err != nil:
		logger.Warn("AUTH", fmt.Sprintf("Stored session unreadable, discarding: %v", err))
		s.db.Exec(`DELETE FROM auth_session`)
		s.cached, s.loaded = nil, true
		return nil
	}
	if expiresUnix > 0 {
		sess.ExpiresAt = time.Unix(expiresUnix, 0)
	}
	if !sess.Valid() {
		logger.Warn("AUTH", "Stored session incomplete, discarding")
		s.db.Exec(`DELETE FROM auth_session`)
		s.cached, s.loaded = nil, true
		return nil
	}
	s.cached, s.loaded = &sess, true
	return copySession(&sess)
}

func copySession(s *Session) *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// Delete removes the stored record.
func (s *SessionStore) Delete() {
	s.db.Exec(`DELETE FROM auth_session`)
	s.mu.Lock()
	s.cached, s.loaded = nil, true
	s.mu.Unlock()
}

// Identity implements esi.TokenSource.
func (s *SessionStore) Identity() (esi.Identity, bool) {
	sess := s.Get()
	if sess == nil {
		return esi.Identity{}, false
	}
	return esi.Identity{
		CharacterID:     sess.CharacterID,
		CharacterName:   sess.CharacterName,
		CorporationID:   sess.CorporationID,
		CorporationName: sess.CorporationName,
	}, true
}

// EnsureValidToken returns a valid access token, refreshing if it expires within
// a minute. Concurrent callers may both refresh; either result is a valid token.
func (s *SessionStore) EnsureValidToken(ctx context.Context) (string, error) {
	sess := s.Get()
	if sess == nil {
		return "", ErrNotLoggedIn
	}
	if s.now().Before(sess.ExpiresAt.Add(-refreshBuffer)) {
		return sess.AccessToken, nil
	}
	if s.sso == nil {
		return "", fmt.Errorf("sso not configured")
	}

	logger.Info("AUTH", fmt.Sprintf("Refreshing token for %s", sess.CharacterName))
	tok, err := s.sso.RefreshToken(ctx, sess.RefreshToken)
	if err != nil {
		s.Delete()
		return "", fmt.Errorf("refresh failed: %w", err)
	}

	sess.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		sess.RefreshToken = tok.RefreshToken
	}
	sess.ExpiresAt = s.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	if err := s.Save(sess); err != nil {
		return "", err
	}
	return sess.AccessToken, nil
}
