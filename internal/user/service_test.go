package user_test

import (
	"context"
	"testing"

	"github.com/coreauth/oauthserver/internal/audit"
	icrypto "github.com/coreauth/oauthserver/internal/crypto"
	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/coreauth/oauthserver/internal/storage/memory"
	"github.com/coreauth/oauthserver/internal/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopAudit struct{}

func (noopAudit) Log(context.Context, string, audit.LogParams) {}

func newService() (*user.Service, *memory.Store) {
	store := memory.New(nil)
	svc := user.New(store.Users, icrypto.NewBcryptHasher(4), noopAudit{}, nil)
	return svc, store
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "Person@Example.com", "person", "Correct1!horse", "Person", domain.AccountTypeUser)
	require.NoError(t, err)
	assert.Equal(t, "person@example.com", u.Email)

	authed, err := svc.Authenticate(ctx, "person@example.com", "Correct1!horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, authed.ID)

	authed, err = svc.Authenticate(ctx, "person", "Correct1!horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, authed.ID)
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "person@example.com", "person", "Correct1!horse", "Person", domain.AccountTypeUser)
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "person@example.com", "Wr0ngPassw!rd")
	assert.ErrorIs(t, err, user.ErrInvalidCredentials)
}

func TestAuthenticate_UnknownIdentifierDoesNotLeak(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Authenticate(context.Background(), "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, user.ErrInvalidCredentials)
}

func TestChangePassword(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "person@example.com", "person", "Correct1!horse", "Person", domain.AccountTypeUser)
	require.NoError(t, err)

	require.NoError(t, svc.ChangePassword(ctx, u.ID, "Correct1!horse", "NewPassw0rd!"))

	_, err = svc.Authenticate(ctx, "person@example.com", "Correct1!horse")
	assert.Error(t, err)

	_, err = svc.Authenticate(ctx, "person@example.com", "NewPassw0rd!")
	assert.NoError(t, err)
}

func TestRegister_RejectsWeakPassword(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "person@example.com", "person", "allsmall1", "Person", domain.AccountTypeUser)
	assert.ErrorIs(t, err, domain.ErrWeakPassword, "missing uppercase and symbol")

	_, err = svc.Register(ctx, "person@example.com", "person", "Short1!", "Person", domain.AccountTypeUser)
	assert.ErrorIs(t, err, domain.ErrWeakPassword, "below minimum length")
}

func TestChangePassword_RejectsWeakNewPassword(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "person@example.com", "person", "Correct1!horse", "Person", domain.AccountTypeUser)
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, u.ID, "Correct1!horse", "allweaknopunct")
	assert.ErrorIs(t, err, domain.ErrWeakPassword)
}

func TestUpgradeToDeveloper(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "person@example.com", "person", "Correct1!horse", "Person", domain.AccountTypeUser)
	require.NoError(t, err)
	assert.False(t, u.IsDeveloper)

	updated, err := svc.UpgradeToDeveloper(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsDeveloper)
	assert.Equal(t, domain.AccountTypeHybrid, updated.DerivedAccountType())
}
