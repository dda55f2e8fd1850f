package bootstrap_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/coreauth/oauthserver/internal/bootstrap"
	icrypto "github.com/coreauth/oauthserver/internal/crypto"
	"github.com/coreauth/oauthserver/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() bootstrap.Config {
	return bootstrap.Config{
		ClientID:     "bff-client",
		ClientSecret: "this-is-a-sufficiently-long-secret-value",
		ClientName:   "BFF",
		RedirectURIs: []string{"https://app.example/cb"},
	}
}

func TestEnsure_CreatesSystemClientWhenAbsent(t *testing.T) {
	store := memory.New(nil)
	hasher := icrypto.NewBcryptHasher(4)

	err := bootstrap.Ensure(context.Background(), store.Clients, hasher, testConfig(), discardLogger())
	require.NoError(t, err)

	c, err := store.Clients.FindSystemClient(context.Background())
	require.NoError(t, err)
	assert.True(t, c.IsSystemClient)
	assert.Equal(t, "bff", c.SystemRole)
	assert.NoError(t, hasher.Compare(c.ClientSecretHash, testConfig().ClientSecret))
}

func TestEnsure_IsIdempotentOnSecondRun(t *testing.T) {
	store := memory.New(nil)
	hasher := icrypto.NewBcryptHasher(4)

	require.NoError(t, bootstrap.Ensure(context.Background(), store.Clients, hasher, testConfig(), discardLogger()))
	require.NoError(t, bootstrap.Ensure(context.Background(), store.Clients, hasher, testConfig(), discardLogger()))
}

func TestEnsure_RejectsShortSecret(t *testing.T) {
	store := memory.New(nil)
	hasher := icrypto.NewBcryptHasher(4)

	cfg := testConfig()
	cfg.ClientSecret = "too-short"

	err := bootstrap.Ensure(context.Background(), store.Clients, hasher, cfg, discardLogger())
	assert.ErrorIs(t, err, bootstrap.ErrSecretTooShort)
}
