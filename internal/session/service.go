// Package session implements cookie-backed login sessions: issuing an
// opaque session id on login, looking it up on subsequent requests, and
// tearing it down on logout or password change.
package session

import (
	"context"
	"time"

	"github.com/coreauth/oauthserver/internal/audit"
	"github.com/coreauth/oauthserver/internal/crypto"
	"github.com/coreauth/oauthserver/internal/domain"
)

// Repository is the subset of storage.SessionRepository this service
// depends on.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	FindByID(ctx context.Context, id string, now time.Time) (*domain.Session, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Service is the session manager use case.
type Service struct {
	repo  Repository
	audit audit.Service
	now   func() time.Time
}

func New(repo Repository, auditLog audit.Service) *Service {
	return &Service{repo: repo, audit: auditLog, now: time.Now}
}

// Issue creates and persists a new session for userID.
func (s *Service) Issue(ctx context.Context, userID string, rememberMe bool) (*domain.Session, error) {
	id, err := crypto.GenerateSessionID()
	if err != nil {
		return nil, err
	}
	ttl := domain.DefaultSessionTTL
	if rememberMe {
		ttl = domain.RememberMeSessionTTL
	}
	sess := domain.NewSession(id, userID, ttl, s.now())
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Lookup fetches a session by id. Expired sessions are deleted by the
// repository as part of the lookup and never returned.
func (s *Service) Lookup(ctx context.Context, id string) (*domain.Session, error) {
	return s.repo.FindByID(ctx, id, s.now())
}

// Revoke deletes a single session (logout of one device).
func (s *Service) Revoke(ctx context.Context, id string) error {
	sess, err := s.repo.FindByID(ctx, id, s.now())
	if err == nil {
		s.audit.Log(ctx, audit.EventUserLogout, audit.LogParams{})
		_ = sess
	}
	return s.repo.DeleteByID(ctx, id)
}

// RevokeAllForUser deletes every session belonging to userID, used after
// a password change to kill the user's sessions on every device,
// including the one making the request.
func (s *Service) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.repo.DeleteByUserID(ctx, userID)
}

// Cleanup purges every session that expired before now, returning the
// number of rows removed. Intended to be called periodically by the
// janitor process.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}
