package domain

import (
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidRedirectURI = errors.New("redirect_uri must be an absolute URI")
	ErrSystemClientOwner  = errors.New("system clients must not have a user owner")
)

// GrantType enumerates the grant types a client may be registered for.
type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantRefreshToken      GrantType = "refresh_token"
)

// Client is a registered OAuth client (confidential or public).
type Client struct {
	ID               uuid.UUID
	ClientID         string // external identifier
	ClientSecretHash string
	ClientSecretOld  string // previous hash, valid during the rotation grace window
	SecretExpiresAt  *time.Time
	ClientName       string
	RedirectURIs     []string
	GrantTypes       map[GrantType]struct{}
	IsPublic         bool
	IsActive         bool
	IsSystemClient   bool
	SystemRole       string
	UserID           *uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewClient constructs a developer-owned client.
func NewClient(clientName string, redirectURIs []string, isPublic bool, ownerID uuid.UUID, now time.Time) (*Client, error) {
	for _, u := range redirectURIs {
		if !isAbsoluteURI(u) {
			return nil, ErrInvalidRedirectURI
		}
	}

	owner := ownerID
	return &Client{
		ID:           uuid.New(),
		ClientID:     uuid.NewString(),
		ClientName:   clientName,
		RedirectURIs: redirectURIs,
		GrantTypes:   map[GrantType]struct{}{GrantAuthorizationCode: {}},
		IsPublic:     isPublic,
		IsActive:     true,
		UserID:       &owner,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NewSystemClient constructs the first-party, consent-bypassing client.
func NewSystemClient(clientID, clientName string, redirectURIs []string, systemRole string, now time.Time) *Client {
	return &Client{
		ID:             uuid.New(),
		ClientID:       clientID,
		ClientName:     clientName,
		RedirectURIs:   redirectURIs,
		GrantTypes:     map[GrantType]struct{}{GrantAuthorizationCode: {}},
		IsActive:       true,
		IsSystemClient: true,
		SystemRole:     systemRole,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// HasExactRedirectURI reports whether uri is byte-exactly one of the
// client's registered redirect URIs (trailing slash and all).
func (c *Client) HasExactRedirectURI(uri string) bool {
	for _, r := range c.RedirectURIs {
		if r == uri {
			return true
		}
	}
	return false
}

// WithProfile returns a copy with mutated editable fields.
func (c *Client) WithProfile(clientName string, redirectURIs []string, grantTypes map[GrantType]struct{}, isPublic bool, now time.Time) (*Client, error) {
	for _, u := range redirectURIs {
		if !isAbsoluteURI(u) {
			return nil, ErrInvalidRedirectURI
		}
	}
	cp := *c
	cp.ClientName = clientName
	cp.RedirectURIs = redirectURIs
	cp.GrantTypes = grantTypes
	cp.IsPublic = isPublic
	cp.UpdatedAt = now
	return &cp, nil
}

// WithSoftDelete returns a copy marked inactive.
func (c *Client) WithSoftDelete(now time.Time) *Client {
	cp := *c
	cp.IsActive = false
	cp.UpdatedAt = now
	return &cp
}

// WithRotatedSecret returns a copy with the secret rotated: the current
// hash becomes the grace-period "old" secret, and newHash becomes current.
func (c *Client) WithRotatedSecret(newHash string, graceExpiresAt, now time.Time) *Client {
	cp := *c
	cp.ClientSecretOld = c.ClientSecretHash
	cp.ClientSecretHash = newHash
	cp.SecretExpiresAt = &graceExpiresAt
	cp.UpdatedAt = now
	return &cp
}

// AcceptsSecret reports whether the given hash matches the current
// secret, or the previous one within its grace window.
func (c *Client) AcceptsSecret(hash string, now time.Time) bool {
	if hash == c.ClientSecretHash {
		return true
	}
	if c.ClientSecretOld != "" && hash == c.ClientSecretOld {
		return c.SecretExpiresAt != nil && now.Before(*c.SecretExpiresAt)
	}
	return false
}

func isAbsoluteURI(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.IsAbs()
}
