package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Consent is one row in a user's consent history for a given client.
// At most one row per (UserID, ClientID) may be active at a time; prior
// rows are retained, revoked, as audit history.
type Consent struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ClientID  string
	Scopes    map[string]struct{}
	GrantedAt time.Time
	ExpiresAt *time.Time
	RevokedAt *time.Time
}

// NewConsent builds a freshly granted, active consent row.
func NewConsent(userID uuid.UUID, clientID string, scopes map[string]struct{}, now time.Time) *Consent {
	return &Consent{
		ID:        uuid.New(),
		UserID:    userID,
		ClientID:  clientID,
		Scopes:    scopes,
		GrantedAt: now,
	}
}

// IsActive reports whether the consent is currently in force.
func (c *Consent) IsActive(now time.Time) bool {
	if c.RevokedAt != nil {
		return false
	}
	return c.ExpiresAt == nil || now.Before(*c.ExpiresAt)
}

// CoversScopes reports whether the consent's scope set is a superset of
// the requested scopes.
func (c *Consent) CoversScopes(requested map[string]struct{}) bool {
	for s := range requested {
		if _, ok := c.Scopes[s]; !ok {
			return false
		}
	}
	return true
}

// WithRevoked returns a copy of the consent marked revoked at now.
// Revoking an already-revoked consent is a no-op (returns the same
// revocation timestamp).
func (c *Consent) WithRevoked(now time.Time) *Consent {
	if c.RevokedAt != nil {
		cp := *c
		return &cp
	}
	cp := *c
	cp.RevokedAt = &now
	return &cp
}

// ScopeSet builds a scope membership set from a space-delimited string.
func ScopeSet(spaceDelimited string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, s := range strings.Fields(spaceDelimited) {
		set[s] = struct{}{}
	}
	return set
}

// JoinScopes renders a scope set back to its space-delimited wire form,
// sorted for determinism.
func JoinScopes(set map[string]struct{}) string {
	names := make([]string, 0, len(set))
	for s := range set {
		names = append(names, s)
	}
	sort.Strings(names)
	return strings.Join(names, " ")
}
