// Package client implements the OAuth client lifecycle: registration,
// ownership-scoped listing, profile updates, soft deletion, and secret
// rotation with a grace window.
package client

import (
	"context"
	"errors"
	"time"

	"github.com/coreauth/oauthserver/internal/crypto"
	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/coreauth/oauthserver/internal/mailer"
	"github.com/google/uuid"
)

// SecretRotationGrace is how long a rotated-out client secret remains
// acceptable alongside the new one.
const SecretRotationGrace = 24 * time.Hour

var (
	ErrForbidden     = errors.New("client: caller does not own this client")
	ErrInvalidSecret = errors.New("client: invalid client secret")
	// ErrMFARequired is returned by RotateSecret/SoftDelete when the
	// caller has TOTP enabled but did not present a code.
	ErrMFARequired = errors.New("client: mfa code required for this operation")
)

// Repository is the subset of storage.ClientRepository this service
// depends on.
type Repository interface {
	Create(ctx context.Context, c *domain.Client) error
	FindByID(ctx context.Context, id string) (*domain.Client, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Client, error)
	FindSystemClient(ctx context.Context) (*domain.Client, error)
	Update(ctx context.Context, c *domain.Client) error
}

// OwnerLookup resolves a client owner's email for rotation notices. A
// subset of user.Repository, kept narrow so this package doesn't import
// the user package directly.
type OwnerLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// MFAVerifier checks a TOTP code for a user. Satisfied by
// *user.MFAService; kept narrow so this package doesn't import the user
// package directly.
type MFAVerifier interface {
	Verify(ctx context.Context, userID uuid.UUID, code string) error
}

// Service is the client lifecycle use case.
type Service struct {
	repo   Repository
	hasher crypto.PasswordHasher
	owners OwnerLookup
	mail   mailer.Sender
	mfa    MFAVerifier
	now    func() time.Time
}

// New builds a Service. hasher hashes client secrets the same way it
// hashes user passwords. owners, mail, and mfa may all be nil: a nil
// owners/mail pair silently skips the rotation-notice email, and a nil
// mfa silently skips the second-factor gate on rotation/deletion for
// every caller regardless of their MFAEnabled state.
func New(repo Repository, hasher crypto.PasswordHasher, owners OwnerLookup, mail mailer.Sender, mfa MFAVerifier) *Service {
	return &Service{repo: repo, hasher: hasher, owners: owners, mail: mail, mfa: mfa, now: time.Now}
}

// enforceMFA requires a valid TOTP code for ownerID when both an
// OwnerLookup and MFAVerifier are wired and the owner has MFA enabled.
// It is a no-op when either dependency is absent, or the owner has never
// enabled MFA.
func (s *Service) enforceMFA(ctx context.Context, ownerID uuid.UUID, code string) error {
	if s.owners == nil || s.mfa == nil {
		return nil
	}
	owner, err := s.owners.FindByID(ctx, ownerID)
	if err != nil {
		return err
	}
	if !owner.MFAEnabled {
		return nil
	}
	if code == "" {
		return ErrMFARequired
	}
	return s.mfa.Verify(ctx, ownerID, code)
}

// Registered is the result of registering a new client: the entity plus
// the one-time plaintext secret (empty for public clients).
type Registered struct {
	Client      *domain.Client
	PlainSecret string
}

// Register creates a new developer-owned client. Confidential clients
// receive a freshly generated secret, returned exactly once.
func (s *Service) Register(ctx context.Context, ownerID uuid.UUID, clientName string, redirectURIs []string, isPublic bool) (*Registered, error) {
	c, err := domain.NewClient(clientName, redirectURIs, isPublic, ownerID, s.now())
	if err != nil {
		return nil, err
	}

	var plainSecret string
	if !isPublic {
		plainSecret, err = crypto.GenerateClientSecret()
		if err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(plainSecret)
		if err != nil {
			return nil, err
		}
		c.ClientSecretHash = hash
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return &Registered{Client: c, PlainSecret: plainSecret}, nil
}

// List returns the caller's active clients, newest first.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]*domain.Client, error) {
	return s.repo.FindByOwner(ctx, ownerID)
}

// Get fetches a client by its external client_id, verifying ownerID owns
// it. System clients have no owner and are never returned here.
func (s *Service) Get(ctx context.Context, clientID string, ownerID uuid.UUID) (*domain.Client, error) {
	c, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnership(c, ownerID); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateProfile updates a client's editable fields.
func (s *Service) UpdateProfile(ctx context.Context, clientID string, ownerID uuid.UUID, clientName string, redirectURIs []string, isPublic bool) (*domain.Client, error) {
	c, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnership(c, ownerID); err != nil {
		return nil, err
	}

	updated, err := c.WithProfile(clientName, redirectURIs, c.GrantTypes, isPublic, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// SoftDelete deactivates a client without removing its row, preserving
// the audit trail and any authorization codes/consents that reference
// it by foreign key. If the owner has TOTP enabled, mfaCode must be a
// valid current code.
func (s *Service) SoftDelete(ctx context.Context, clientID string, ownerID uuid.UUID, mfaCode string) error {
	c, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		return err
	}
	if err := s.checkOwnership(c, ownerID); err != nil {
		return err
	}
	if err := s.enforceMFA(ctx, ownerID, mfaCode); err != nil {
		return err
	}
	return s.repo.Update(ctx, c.WithSoftDelete(s.now()))
}

// RotateSecret issues a new client secret. The previous secret remains
// valid for SecretRotationGrace so in-flight deployments aren't broken by
// the rotation. Returns the new plaintext secret, shown exactly once. If
// the owner has TOTP enabled, mfaCode must be a valid current code.
func (s *Service) RotateSecret(ctx context.Context, clientID string, ownerID uuid.UUID, mfaCode string) (string, error) {
	c, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		return "", err
	}
	if err := s.checkOwnership(c, ownerID); err != nil {
		return "", err
	}
	if err := s.enforceMFA(ctx, ownerID, mfaCode); err != nil {
		return "", err
	}

	plainSecret, err := crypto.GenerateClientSecret()
	if err != nil {
		return "", err
	}
	hash, err := s.hasher.Hash(plainSecret)
	if err != nil {
		return "", err
	}

	now := s.now()
	rotated := c.WithRotatedSecret(hash, now.Add(SecretRotationGrace), now)
	if err := s.repo.Update(ctx, rotated); err != nil {
		return "", err
	}
	s.notifyRotation(ctx, rotated)
	return plainSecret, nil
}

// notifyRotation best-effort emails the client owner that its secret was
// rotated. owners/mail may both be nil (e.g. in unit tests), in which
// case this is a silent no-op.
func (s *Service) notifyRotation(ctx context.Context, c *domain.Client) {
	if s.owners == nil || s.mail == nil || c.UserID == nil {
		return
	}
	owner, err := s.owners.FindByID(ctx, *c.UserID)
	if err != nil {
		return
	}
	_ = s.mail.Send(ctx, mailer.Payload{
		To:       owner.Email,
		Template: mailer.TemplateSecretRotated,
		Data:     map[string]any{"clientName": c.ClientName},
	})
}

// AuthenticateSecret verifies a confidential client's presented secret
// against the current hash, or the prior one within its grace window.
func (s *Service) AuthenticateSecret(ctx context.Context, clientID, secret string) (*domain.Client, error) {
	c, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !s.secretMatches(c, secret) {
		return nil, ErrInvalidSecret
	}
	return c, nil
}

func (s *Service) secretMatches(c *domain.Client, secret string) bool {
	if err := s.hasher.Compare(c.ClientSecretHash, secret); err == nil {
		return true
	}
	if c.ClientSecretOld != "" && c.SecretExpiresAt != nil && s.now().Before(*c.SecretExpiresAt) {
		return s.hasher.Compare(c.ClientSecretOld, secret) == nil
	}
	return false
}

func (s *Service) checkOwnership(c *domain.Client, ownerID uuid.UUID) error {
	if c.IsSystemClient {
		return ErrForbidden
	}
	if c.UserID == nil || *c.UserID != ownerID {
		return ErrForbidden
	}
	return nil
}
