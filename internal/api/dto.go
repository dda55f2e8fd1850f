package api

import (
	"time"

	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/google/uuid"
)

// userDTO is the public JSON shape of a user: credentials and MFA
// secrets never leave this package.
type userDTO struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username,omitempty"`
	FullName       string    `json:"fullName"`
	IsDeveloper    bool      `json:"isDeveloper"`
	CanUseExpenses bool      `json:"canUseExpenses"`
	MFAEnabled     bool      `json:"mfaEnabled"`
	CreatedAt      time.Time `json:"createdAt"`
}

func newUserDTO(u *domain.User) userDTO {
	return userDTO{
		ID:             u.ID,
		Email:          u.Email,
		Username:       u.Username,
		FullName:       u.FullName,
		IsDeveloper:    u.IsDeveloper,
		CanUseExpenses: u.CanUseExpenses,
		MFAEnabled:     u.MFAEnabled,
		CreatedAt:      u.CreatedAt,
	}
}

// clientDTO is the public JSON shape of an OAuth client. clientSecret is
// only populated by the registration and rotate-secret responses, which
// is the one time the plaintext value is ever shown.
type clientDTO struct {
	ClientID           string     `json:"clientId"`
	ClientName         string     `json:"clientName"`
	RedirectURIs       []string   `json:"redirectUris"`
	IsPublic           bool       `json:"isPublic"`
	IsActive           bool       `json:"isActive"`
	ClientSecret       string     `json:"clientSecret,omitempty"`
	OldSecretExpiresAt *time.Time `json:"oldSecretExpiresAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

func newClientDTO(c *domain.Client) clientDTO {
	return clientDTO{
		ClientID:     c.ClientID,
		ClientName:   c.ClientName,
		RedirectURIs: c.RedirectURIs,
		IsPublic:     c.IsPublic,
		IsActive:     c.IsActive,
		CreatedAt:    c.CreatedAt,
	}
}

// consentDTO is the public JSON shape of a consent ledger row.
type consentDTO struct {
	ID        uuid.UUID  `json:"id"`
	ClientID  string     `json:"clientId"`
	Scopes    []string   `json:"scopes"`
	GrantedAt time.Time  `json:"grantedAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}

func newConsentDTO(c *domain.Consent) consentDTO {
	scopes := make([]string, 0, len(c.Scopes))
	for name := range c.Scopes {
		scopes = append(scopes, name)
	}
	return consentDTO{
		ID:        c.ID,
		ClientID:  c.ClientID,
		Scopes:    scopes,
		GrantedAt: c.GrantedAt,
		RevokedAt: c.RevokedAt,
	}
}
