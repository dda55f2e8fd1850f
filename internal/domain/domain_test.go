package domain_test

import (
	"testing"
	"time"

	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser_DerivesAccountType(t *testing.T) {
	now := time.Now()

	u, err := domain.NewUser("Person@Example.COM", "person", "hash", "Person", domain.AccountTypeUser, now)
	require.NoError(t, err)
	assert.Equal(t, "person@example.com", u.Email, "email must be stored lowercased")
	assert.Equal(t, domain.AccountTypeUser, u.DerivedAccountType())
	assert.True(t, u.CanUseExpenses)
	assert.NotNil(t, u.ExpensesEnabledAt)

	dev, err := domain.NewUser("dev@example.com", "", "hash", "", domain.AccountTypeDeveloper, now)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountTypeDeveloper, dev.DerivedAccountType())
	require.NotNil(t, dev.DeveloperEnabledAt)

	hybrid := dev.WithExpensesEnabled(now)
	assert.Equal(t, domain.AccountTypeHybrid, hybrid.DerivedAccountType())
}

func TestNewUser_RejectsInvalidEmail(t *testing.T) {
	_, err := domain.NewUser("not-an-email", "", "hash", "", domain.AccountTypeUser, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestNewUser_RejectsInvalidUsername(t *testing.T) {
	_, err := domain.NewUser("a@b.com", "no", "hash", "", domain.AccountTypeUser, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidUsername)
}

func TestClient_HasExactRedirectURI(t *testing.T) {
	now := time.Now()
	c, err := domain.NewClient("app", []string{"https://app.example/cb"}, false, uuid.New(), now)
	require.NoError(t, err)

	assert.True(t, c.HasExactRedirectURI("https://app.example/cb"))
	assert.False(t, c.HasExactRedirectURI("https://app.example/cb/"), "trailing slash must not match")
}

func TestClient_RotatedSecretGraceWindow(t *testing.T) {
	now := time.Now()
	c, err := domain.NewClient("app", []string{"https://app.example/cb"}, false, uuid.New(), now)
	require.NoError(t, err)
	c.ClientSecretHash = "old-hash"

	rotated := c.WithRotatedSecret("new-hash", now.Add(24*time.Hour), now)
	assert.True(t, rotated.AcceptsSecret("new-hash", now))
	assert.True(t, rotated.AcceptsSecret("old-hash", now.Add(time.Hour)), "old secret valid within grace window")
	assert.False(t, rotated.AcceptsSecret("old-hash", now.Add(25*time.Hour)), "old secret rejected after grace window")
}

func TestAuthorizationCode_ExpiryBoundary(t *testing.T) {
	now := time.Now()
	code := domain.NewAuthorizationCode("c", "u", "client", "https://app/cb", "read", domain.ChallengeMethodS256, "chal", 10*time.Minute, now)

	assert.False(t, code.IsExpired(now.Add(9*time.Minute+59*time.Second)))
	assert.True(t, code.IsExpired(now.Add(10*time.Minute)), "a code expiring exactly at now is expired")
}

func TestAuthorizationCode_CapsLifetimeAtTenMinutes(t *testing.T) {
	now := time.Now()
	code := domain.NewAuthorizationCode("c", "u", "client", "https://app/cb", "read", domain.ChallengeMethodS256, "chal", time.Hour, now)
	assert.Equal(t, now.Add(domain.MaxAuthCodeLifetime), code.ExpiresAt)
}

func TestSession_IsExpired(t *testing.T) {
	now := time.Now()
	s := domain.NewSession("sess-1", "user-1", time.Hour, now)
	assert.False(t, s.IsExpired(now.Add(59*time.Minute)))
	assert.True(t, s.IsExpired(now.Add(time.Hour)))
}

func TestConsent_ActiveAndRevoke(t *testing.T) {
	now := time.Now()
	c := domain.NewConsent(uuid.New(), "client-1", domain.ScopeSet("read write"), now)
	assert.True(t, c.IsActive(now))
	assert.True(t, c.CoversScopes(domain.ScopeSet("read")))
	assert.False(t, c.CoversScopes(domain.ScopeSet("admin")))

	revoked := c.WithRevoked(now.Add(time.Minute))
	assert.False(t, revoked.IsActive(now.Add(time.Hour)))

	// Revoking an already-revoked consent is idempotent: timestamp is unchanged.
	revokedAgain := revoked.WithRevoked(now.Add(time.Hour))
	assert.Equal(t, *revoked.RevokedAt, *revokedAgain.RevokedAt)
}

func TestScopeSetRoundTrip(t *testing.T) {
	set := domain.ScopeSet("write read read")
	assert.Equal(t, "read write", domain.JoinScopes(set))
}
