// Package user implements account lifecycle use cases: registration,
// authentication, profile and password changes, and the developer/
// expenses upgrades, plus an optional TOTP second factor that gates
// client secret rotation and client deletion.
package user

import (
	"context"
	"errors"
	"time"

	"github.com/coreauth/oauthserver/internal/audit"
	"github.com/coreauth/oauthserver/internal/crypto"
	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/coreauth/oauthserver/internal/mailer"
	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("user: invalid credentials")
	ErrAccountInactive    = errors.New("user: account is inactive")
	// ErrInvalidUser maps to the InvalidUser taxonomy entry: an upgrade
	// attempt that does not apply to the account's current state (e.g.
	// already a developer, already expenses-enabled).
	ErrInvalidUser = errors.New("user: invalid user state for this operation")
	// ErrSamePassword rejects a password change whose new value equals
	// the current one.
	ErrSamePassword = errors.New("user: new password must differ from the current password")
)

// Repository is the subset of storage.UserRepository this service
// depends on.
type Repository interface {
	Create(ctx context.Context, u *domain.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByEmailOrUsername(ctx context.Context, identifier string) (*domain.User, error)
	Update(ctx context.Context, u *domain.User) error
}

// Service is the user lifecycle use case.
type Service struct {
	repo   Repository
	hasher crypto.PasswordHasher
	audit  audit.Service
	mail   mailer.Sender
	now    func() time.Time
}

// New wires the use case. mail may be nil, in which case lifecycle
// notifications are silently skipped (used by tests that don't care
// about the email side effect).
func New(repo Repository, hasher crypto.PasswordHasher, auditLog audit.Service, mail mailer.Sender) *Service {
	return &Service{repo: repo, hasher: hasher, audit: auditLog, mail: mail, now: time.Now}
}

// notify best-effort sends a lifecycle email. Senders log their own
// delivery failures, so a failure here never blocks the caller.
func (s *Service) notify(ctx context.Context, to string, tmpl mailer.Template, data map[string]any) {
	if s.mail == nil {
		return
	}
	_ = s.mail.Send(ctx, mailer.Payload{To: to, Template: tmpl, Data: data})
}

// Register creates a new account.
func (s *Service) Register(ctx context.Context, email, username, password, fullName string, accountType domain.AccountType) (*domain.User, error) {
	if err := domain.ValidatePasswordStrength(password); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	u, err := domain.NewUser(email, username, hash, fullName, accountType, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.EventUserRegistered, audit.LogParams{
		ActorID:  u.ID,
		TargetID: u.ID,
		Metadata: map[string]any{"account_type": string(accountType)},
	})
	s.notify(ctx, u.Email, mailer.TemplateWelcome, map[string]any{"fullName": u.FullName})
	return u, nil
}

// Authenticate verifies emailOrUsername/password and returns the user on
// success. Failure reasons are collapsed to ErrInvalidCredentials so
// callers can't enumerate valid accounts by response shape.
func (s *Service) Authenticate(ctx context.Context, emailOrUsername, password string) (*domain.User, error) {
	u, err := s.repo.FindByEmailOrUsername(ctx, emailOrUsername)
	if err != nil {
		// Still hash something to keep the timing profile close to the
		// found-user path.
		_ = s.hasher.Compare("$2a$10$invalidinvalidinvalidinvalidinvalidinvalidinvalidinvalidinv", password)
		s.audit.Log(ctx, audit.EventUserLoginFailed, audit.LogParams{Metadata: map[string]any{"identifier": emailOrUsername}})
		return nil, ErrInvalidCredentials
	}

	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		s.audit.Log(ctx, audit.EventUserLoginFailed, audit.LogParams{ActorID: u.ID, TargetID: u.ID})
		return nil, ErrInvalidCredentials
	}

	if !u.IsActive {
		return nil, ErrAccountInactive
	}

	s.audit.Log(ctx, audit.EventUserLoginSuccess, audit.LogParams{ActorID: u.ID, TargetID: u.ID})
	return u, nil
}

// Get fetches a user by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateProfile updates the editable profile fields.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, fullName, username string) (*domain.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := u.WithProfile(fullName, username, s.now())
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// ChangePassword verifies the current password before setting a new one.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, currentPassword, newPassword string) error {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(u.PasswordHash, currentPassword); err != nil {
		return ErrInvalidCredentials
	}
	if currentPassword == newPassword {
		return ErrSamePassword
	}
	if err := domain.ValidatePasswordStrength(newPassword); err != nil {
		return err
	}
	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, u.WithPasswordHash(newHash, s.now())); err != nil {
		return err
	}
	s.notify(ctx, u.Email, mailer.TemplatePasswordChanged, nil)
	return nil
}

// UpgradeToDeveloper flips the developer flag for an existing account.
func (s *Service) UpgradeToDeveloper(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.IsDeveloper {
		return nil, ErrInvalidUser
	}
	updated := u.WithUpgradeToDeveloper(s.now())
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}
	s.audit.Log(ctx, audit.EventUserUpgraded, audit.LogParams{ActorID: id, TargetID: id})
	return updated, nil
}

// EnableExpenses flips the can-use-expenses flag for an existing account.
func (s *Service) EnableExpenses(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.CanUseExpenses {
		return nil, ErrInvalidUser
	}
	updated := u.WithExpensesEnabled(s.now())
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}
