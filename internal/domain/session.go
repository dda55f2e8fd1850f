package domain

import "time"

// DefaultSessionTTL and RememberMeSessionTTL are the login session
// lifetimes used by the session manager.
const (
	DefaultSessionTTL    = 24 * time.Hour
	RememberMeSessionTTL = 7 * 24 * time.Hour
)

// Session is an opaque, cookie-backed login session.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewSession builds a session with the given opaque id and ttl.
func NewSession(id, userID string, ttl time.Duration, now time.Time) *Session {
	return &Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// IsExpired reports whether the session has expired as of now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
