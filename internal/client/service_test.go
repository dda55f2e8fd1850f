package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/coreauth/oauthserver/internal/client"
	icrypto "github.com/coreauth/oauthserver/internal/crypto"
	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/coreauth/oauthserver/internal/storage/memory"
	"github.com/coreauth/oauthserver/internal/user"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() (*client.Service, *memory.Store) {
	store := memory.New(nil)
	return client.New(store.Clients, icrypto.NewBcryptHasher(4), nil, nil, nil), store
}

func TestRegister_ConfidentialClientGetsSecret(t *testing.T) {
	svc, _ := newService()
	owner := uuid.New()

	reg, err := svc.Register(context.Background(), owner, "My App", []string{"https://app.example/cb"}, false)
	require.NoError(t, err)
	assert.NotEmpty(t, reg.PlainSecret)
	assert.NotEmpty(t, reg.Client.ClientSecretHash)
}

func TestRegister_PublicClientHasNoSecret(t *testing.T) {
	svc, _ := newService()
	owner := uuid.New()

	reg, err := svc.Register(context.Background(), owner, "SPA", []string{"https://app.example/cb"}, true)
	require.NoError(t, err)
	assert.Empty(t, reg.PlainSecret)
	assert.Empty(t, reg.Client.ClientSecretHash)
}

func TestGet_RejectsNonOwner(t *testing.T) {
	svc, _ := newService()
	owner := uuid.New()
	stranger := uuid.New()

	reg, err := svc.Register(context.Background(), owner, "App", []string{"https://app.example/cb"}, true)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), reg.Client.ClientID, stranger)
	assert.ErrorIs(t, err, client.ErrForbidden)
}

func TestRotateSecret_OldSecretValidDuringGrace(t *testing.T) {
	svc, _ := newService()
	owner := uuid.New()
	ctx := context.Background()

	reg, err := svc.Register(ctx, owner, "App", []string{"https://app.example/cb"}, false)
	require.NoError(t, err)
	oldSecret := reg.PlainSecret

	newSecret, err := svc.RotateSecret(ctx, reg.Client.ClientID, owner, "")
	require.NoError(t, err)
	assert.NotEqual(t, oldSecret, newSecret)

	_, err = svc.AuthenticateSecret(ctx, reg.Client.ClientID, newSecret)
	assert.NoError(t, err)

	_, err = svc.AuthenticateSecret(ctx, reg.Client.ClientID, oldSecret)
	assert.NoError(t, err, "old secret must still authenticate during the grace window")
}

func TestAuthenticateSecret_RejectsWrongSecret(t *testing.T) {
	svc, _ := newService()
	owner := uuid.New()
	ctx := context.Background()

	reg, err := svc.Register(ctx, owner, "App", []string{"https://app.example/cb"}, false)
	require.NoError(t, err)

	_, err = svc.AuthenticateSecret(ctx, reg.Client.ClientID, "not-the-secret")
	assert.ErrorIs(t, err, client.ErrInvalidSecret)
}

func TestRotateSecret_RequiresMFAWhenOwnerHasItEnabled(t *testing.T) {
	store := memory.New(nil)
	ctx := context.Background()
	hasher := icrypto.NewBcryptHasher(4)

	owner, err := domain.NewUser("dev@example.com", "dev", "hash", "Dev", domain.AccountTypeDeveloper, time.Now())
	require.NoError(t, err)
	secret, _, err := user.NewMFAService("coreauth", store.Users).BeginSetup(owner.Email)
	require.NoError(t, err)
	require.NoError(t, store.Users.Create(ctx, owner))

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	mfaSvc := user.NewMFAService("coreauth", store.Users)
	require.NoError(t, mfaSvc.ConfirmSetup(ctx, owner.ID, secret, code))

	svc := client.New(store.Clients, hasher, store.Users, nil, mfaSvc)
	reg, err := svc.Register(ctx, owner.ID, "App", []string{"https://app.example/cb"}, false)
	require.NoError(t, err)

	_, err = svc.RotateSecret(ctx, reg.Client.ClientID, owner.ID, "")
	assert.ErrorIs(t, err, client.ErrMFARequired)

	freshCode, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	_, err = svc.RotateSecret(ctx, reg.Client.ClientID, owner.ID, freshCode)
	assert.NoError(t, err)
}
