// Package consent implements the consent ledger: granting, listing, and
// revoking a user's authorization for a client, with the invariant that
// at most one granted consent is active per (user, client) pair at a
// time.
package consent

import (
	"context"
	"errors"
	"time"

	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/coreauth/oauthserver/internal/storage"
	"github.com/google/uuid"
)

// Repository is the subset of storage.ConsentRepository the service
// depends on; kept as its own named interface so call sites don't need
// to import the storage package just to mock this dependency.
type Repository interface {
	FindActive(ctx context.Context, userID uuid.UUID, clientID string, now time.Time) (*domain.Consent, error)
	FindAllByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Consent, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Consent, error)
	Save(ctx context.Context, c *domain.Consent) error
	Revoke(ctx context.Context, id uuid.UUID, now time.Time) error
}

// Service is the consent ledger use case.
type Service struct {
	repo Repository
	now  func() time.Time
}

// New builds a Service backed by repo.
func New(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Active returns the currently active consent for (userID, clientID), or
// storage.ErrNotFound if none exists.
func (s *Service) Active(ctx context.Context, userID uuid.UUID, clientID string) (*domain.Consent, error) {
	return s.repo.FindActive(ctx, userID, clientID, s.now())
}

// CoversScopes reports whether the user has an active consent for
// clientID covering every one of the requested scopes.
func (s *Service) CoversScopes(ctx context.Context, userID uuid.UUID, clientID string, requested map[string]struct{}) (bool, error) {
	c, err := s.repo.FindActive(ctx, userID, clientID, s.now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return c.CoversScopes(requested), nil
}

// Grant records a new consent, auto-revoking any prior active one for
// the same (user, client) pair. Returns the new consent.
func (s *Service) Grant(ctx context.Context, userID uuid.UUID, clientID string, scopes map[string]struct{}) (*domain.Consent, error) {
	c := domain.NewConsent(userID, clientID, scopes, s.now())
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// History returns every consent ever recorded for userID, most recent
// first, active and revoked alike.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]*domain.Consent, error) {
	return s.repo.FindAllByUser(ctx, userID)
}

// ListActive returns only the consents currently in force for userID,
// most recent first. Revoked and expired rows stay in the ledger as
// audit history but are not returned here.
func (s *Service) ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.Consent, error) {
	all, err := s.repo.FindAllByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	active := make([]*domain.Consent, 0, len(all))
	for _, c := range all {
		if c.IsActive(now) {
			active = append(active, c)
		}
	}
	return active, nil
}

// Revoke revokes the consent with the given id. Revoking an
// already-revoked or nonexistent consent is handled by the repository
// (idempotent / ErrNotFound respectively).
func (s *Service) Revoke(ctx context.Context, id uuid.UUID) error {
	return s.repo.Revoke(ctx, id, s.now())
}
