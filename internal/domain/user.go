// Package domain holds the value objects and entities shared by every
// use case: users, OAuth clients, authorization codes, sessions,
// consents, and scope definitions. Entities are immutable records;
// mutation happens through With*-style copy constructors so invariants
// stay enforced at construction time rather than scattered across
// callers.
package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidUsername = errors.New("invalid username")
	ErrWeakPassword    = errors.New("password does not meet the minimum strength policy")
)

// AccountType is the derived classification of a user from its
// isDeveloper/canUseExpenses flags.
type AccountType string

const (
	AccountTypeUser      AccountType = "user"
	AccountTypeDeveloper AccountType = "developer"
	AccountTypeHybrid    AccountType = "hybrid"
)

// User is a registered account holder.
type User struct {
	ID                 uuid.UUID
	Email              string // always stored lowercased
	Username           string // empty string means "not set"
	PasswordHash       string
	FullName           string
	Roles              map[string]struct{}
	IsActive           bool
	EmailVerified      bool
	IsDeveloper        bool
	CanUseExpenses     bool
	DeveloperEnabledAt *time.Time
	ExpensesEnabledAt  *time.Time
	MFASecret          string
	MFAEnabled         bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewUser constructs a new user, enforcing the registration invariants
// from the data model: email is normalized to lowercase and the
// developer/expenses flags are derived consistently with their
// *EnabledAt timestamps.
func NewUser(email, username, passwordHash, fullName string, accountType AccountType, now time.Time) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if username != "" && !isValidUsername(username) {
		return nil, ErrInvalidUsername
	}

	u := &User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		FullName:     fullName,
		Roles:        map[string]struct{}{},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	switch accountType {
	case AccountTypeDeveloper:
		u.IsDeveloper = true
		u.DeveloperEnabledAt = &now
	case AccountTypeHybrid:
		u.IsDeveloper = true
		u.DeveloperEnabledAt = &now
		u.CanUseExpenses = true
		u.ExpensesEnabledAt = &now
	default: // AccountTypeUser, or unspecified
		u.CanUseExpenses = true
		u.ExpensesEnabledAt = &now
	}

	return u, nil
}

// DerivedAccountType computes the account type from the current flags.
func (u *User) DerivedAccountType() AccountType {
	switch {
	case u.IsDeveloper && u.CanUseExpenses:
		return AccountTypeHybrid
	case u.IsDeveloper:
		return AccountTypeDeveloper
	default:
		return AccountTypeUser
	}
}

// WithUpgradeToDeveloper returns a copy with the developer flag set.
func (u *User) WithUpgradeToDeveloper(now time.Time) *User {
	cp := *u
	cp.IsDeveloper = true
	cp.DeveloperEnabledAt = &now
	cp.UpdatedAt = now
	return &cp
}

// WithExpensesEnabled returns a copy with the expenses flag set.
func (u *User) WithExpensesEnabled(now time.Time) *User {
	cp := *u
	cp.CanUseExpenses = true
	cp.ExpensesEnabledAt = &now
	cp.UpdatedAt = now
	return &cp
}

// WithProfile returns a copy with an updated full name and/or username.
func (u *User) WithProfile(fullName, username string, now time.Time) *User {
	cp := *u
	if fullName != "" {
		cp.FullName = fullName
	}
	if username != "" {
		cp.Username = username
	}
	cp.UpdatedAt = now
	return &cp
}

// WithPasswordHash returns a copy with a new password hash.
func (u *User) WithPasswordHash(hash string, now time.Time) *User {
	cp := *u
	cp.PasswordHash = hash
	cp.UpdatedAt = now
	return &cp
}

// WithMFA returns a copy with the TOTP secret and enabled flag set.
func (u *User) WithMFA(secret string, enabled bool, now time.Time) *User {
	cp := *u
	cp.MFASecret = secret
	cp.MFAEnabled = enabled
	cp.UpdatedAt = now
	return &cp
}

func isValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

// ValidatePasswordStrength enforces the registration/change-password
// policy: at least 8 characters, one digit, one uppercase letter, and
// one symbol.
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	var hasDigit, hasUpper, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
		default:
			hasSymbol = true
		}
	}
	if !hasDigit || !hasUpper || !hasSymbol {
		return ErrWeakPassword
	}
	return nil
}

func isValidUsername(username string) bool {
	if len(username) < 3 || len(username) > 32 {
		return false
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}
