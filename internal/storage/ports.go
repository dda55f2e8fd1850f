package storage

import (
	"context"
	"errors"
	"time"

	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/google/uuid"
)

// ErrNotFound is returned by repository lookups that find no matching row.
var ErrNotFound = errors.New("storage: not found")

// ErrConflict is returned when a write would violate a uniqueness
// constraint (duplicate email/username, duplicate active consent).
var ErrConflict = errors.New("storage: conflict")

// UserRepository persists User aggregates.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	// FindByEmailOrUsername looks the identifier up as an email first,
	// falling back to username, matching the /login contract.
	FindByEmailOrUsername(ctx context.Context, identifier string) (*domain.User, error)
	Update(ctx context.Context, u *domain.User) error
}

// ClientRepository persists Client aggregates.
type ClientRepository interface {
	Create(ctx context.Context, c *domain.Client) error
	FindByID(ctx context.Context, id string) (*domain.Client, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Client, error)
	FindSystemClient(ctx context.Context) (*domain.Client, error)
	Update(ctx context.Context, c *domain.Client) error
}

// AuthorizationCodeRepository persists single-use authorization codes.
type AuthorizationCodeRepository interface {
	Create(ctx context.Context, code *domain.AuthorizationCode) error
	FindByCode(ctx context.Context, code string) (*domain.AuthorizationCode, error)
	// MarkUsed performs a compare-and-set: it succeeds only if the code is
	// currently unused, atomically flipping Used to true. Returns
	// ErrConflict if the code was already used by a concurrent request.
	MarkUsed(ctx context.Context, code string, usedAt time.Time) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// SessionRepository persists login sessions.
type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	// FindByID looks up a session by id, atomically deleting it first if
	// it has already expired, so an expired row is never returned.
	FindByID(ctx context.Context, id string, now time.Time) (*domain.Session, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ConsentRepository persists the consent ledger.
type ConsentRepository interface {
	FindActive(ctx context.Context, userID uuid.UUID, clientID string, now time.Time) (*domain.Consent, error)
	FindAllByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Consent, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Consent, error)
	// Save transactionally revokes any existing active consent row for
	// (userID, clientID) and inserts c, so at most one active row ever
	// exists per pair.
	Save(ctx context.Context, c *domain.Consent) error
	Revoke(ctx context.Context, id uuid.UUID, now time.Time) error
}

// ScopeRepository reads the server's registered scope catalogue.
type ScopeRepository interface {
	FindAll(ctx context.Context) ([]domain.ScopeDefinition, error)
	FindByNames(ctx context.Context, names []string) ([]domain.ScopeDefinition, error)
}
