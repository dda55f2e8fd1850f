package consent_test

import (
	"context"
	"testing"

	"github.com/coreauth/oauthserver/internal/consent"
	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/coreauth/oauthserver/internal/storage/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrant_AutoRevokesPriorActiveConsent(t *testing.T) {
	store := memory.New(nil)
	svc := consent.New(store.Consents)
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.Grant(ctx, userID, "client-1", domain.ScopeSet("read"))
	require.NoError(t, err)

	second, err := svc.Grant(ctx, userID, "client-1", domain.ScopeSet("read write"))
	require.NoError(t, err)

	history, err := svc.History(ctx, userID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	byID := map[uuid.UUID]*domain.Consent{}
	for _, c := range history {
		byID[c.ID] = c
	}
	assert.NotNil(t, byID[first.ID].RevokedAt, "first grant must be auto-revoked")
	assert.Nil(t, byID[second.ID].RevokedAt)

	active, err := svc.Active(ctx, userID, "client-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
}

func TestCoversScopes_NoConsentIsNotAnError(t *testing.T) {
	store := memory.New(nil)
	svc := consent.New(store.Consents)

	ok, err := svc.CoversScopes(context.Background(), uuid.New(), "client-1", domain.ScopeSet("read"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCoversScopes_RequiresSuperset(t *testing.T) {
	store := memory.New(nil)
	svc := consent.New(store.Consents)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Grant(ctx, userID, "client-1", domain.ScopeSet("read"))
	require.NoError(t, err)

	ok, err := svc.CoversScopes(ctx, userID, "client-1", domain.ScopeSet("read write"))
	require.NoError(t, err)
	assert.False(t, ok, "consent granting only read must not cover read+write")
}

func TestListActive_ExcludesRevoked(t *testing.T) {
	store := memory.New(nil)
	svc := consent.New(store.Consents)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Grant(ctx, userID, "client-1", domain.ScopeSet("read"))
	require.NoError(t, err)
	second, err := svc.Grant(ctx, userID, "client-1", domain.ScopeSet("read write"))
	require.NoError(t, err)
	revoked, err := svc.Grant(ctx, userID, "client-2", domain.ScopeSet("read"))
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, revoked.ID))

	active, err := svc.ListActive(ctx, userID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	history, err := svc.History(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestRevoke(t *testing.T) {
	store := memory.New(nil)
	svc := consent.New(store.Consents)
	ctx := context.Background()
	userID := uuid.New()

	c, err := svc.Grant(ctx, userID, "client-1", domain.ScopeSet("read"))
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, c.ID))

	_, err = svc.Active(ctx, userID, "client-1")
	assert.Error(t, err)
}
