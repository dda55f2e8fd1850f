package oauth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coreauth/oauthserver/internal/audit"
	"github.com/coreauth/oauthserver/internal/consent"
	icrypto "github.com/coreauth/oauthserver/internal/crypto"
	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/coreauth/oauthserver/internal/oauth"
	"github.com/coreauth/oauthserver/internal/storage/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopAudit struct{}

func (noopAudit) Log(context.Context, string, audit.LogParams) {}

func newTestService(t *testing.T, store *memory.Store) *oauth.Service {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der := x509.MarshalPKCS1PrivateKey(key)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})
	provider, err := icrypto.NewJWTProvider(string(pemKey), "sig-1", "https://auth.example.local", "api")
	require.NoError(t, err)

	consentSvc := consent.New(store.Consents)
	return oauth.New(store.Clients, store.Codes, store.Scopes, store.Users, consentSvc, provider, noopAudit{}, 10*time.Minute, time.Hour)
}

func seedScopes() []domain.ScopeDefinition {
	return []domain.ScopeDefinition{
		{Name: "read", Description: "read access", IsDefault: true},
		{Name: "write", Description: "write access"},
	}
}

func verifierAndChallenge() (string, string) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXkAAAAAAA"
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])
	return verifier, challenge
}

func seedUserAndClient(t *testing.T, store *memory.Store, isSystemClient bool) (*domain.User, *domain.Client) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	u, err := domain.NewUser("u@x.test", "user1", "hash", "", domain.AccountTypeUser, now)
	require.NoError(t, err)
	require.NoError(t, store.Users.Create(ctx, u))

	var c *domain.Client
	if isSystemClient {
		c = domain.NewSystemClient("bff-client", "BFF", []string{"https://app.example/cb"}, "bff", now)
	} else {
		owner := uuid.New()
		c, err = domain.NewClient("Test Client", []string{"https://app.example/cb"}, false, owner, now)
		require.NoError(t, err)
		c.ClientID = "client-1"
	}
	require.NoError(t, store.Clients.Create(ctx, c))
	return u, c
}

func baseRequest(clientID string, challenge string) oauth.AuthorizeRequest {
	return oauth.AuthorizeRequest{
		ClientID:            clientID,
		RedirectURI:         "https://app.example/cb",
		ResponseType:        "code",
		CodeChallenge:       challenge,
		CodeChallengeMethod: "S256",
		State:               "s1",
		Scope:               "read write",
	}
}

func TestBeginAuthorize_HappyPathRequiresConsentThenTokenExchangeSucceeds(t *testing.T) {
	store := memory.New(seedScopes())
	svc := newTestService(t, store)
	ctx := context.Background()
	verifier, challenge := verifierAndChallenge()

	u, _ := seedUserAndClient(t, store, false)
	req := baseRequest("client-1", challenge)

	result, err := svc.BeginAuthorize(ctx, u.ID, req)
	require.NoError(t, err)
	require.NotNil(t, result.ConsentRequired)
	assert.Equal(t, "client-1", result.ConsentRequired.ClientID)

	decided, err := svc.DecideConsent(ctx, u.ID, "approve", req)
	require.NoError(t, err)
	require.NotEmpty(t, decided.RedirectURL)

	parsed, err := url.Parse(decided.RedirectURL)
	require.NoError(t, err)
	code := parsed.Query().Get("code")
	require.NotEmpty(t, code)
	assert.Equal(t, "s1", parsed.Query().Get("state"))

	tokenResp, err := svc.ExchangeToken(ctx, oauth.TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		ClientID:     "client-1",
		RedirectURI:  "https://app.example/cb",
		CodeVerifier: verifier,
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tokenResp.TokenType)
	assert.Equal(t, "read write", tokenResp.Scope)
	assert.NotEmpty(t, tokenResp.AccessToken)

	// Replay: the same code cannot be exchanged twice.
	_, err = svc.ExchangeToken(ctx, oauth.TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		ClientID:     "client-1",
		RedirectURI:  "https://app.example/cb",
		CodeVerifier: verifier,
	})
	assert.ErrorIs(t, err, oauth.ErrInvalidCode)
}

func TestExchangeToken_PKCEMismatch(t *testing.T) {
	store := memory.New(seedScopes())
	svc := newTestService(t, store)
	ctx := context.Background()
	_, challenge := verifierAndChallenge()

	u, _ := seedUserAndClient(t, store, false)
	req := baseRequest("client-1", challenge)

	_, err := svc.BeginAuthorize(ctx, u.ID, req)
	require.NoError(t, err)
	decided, err := svc.DecideConsent(ctx, u.ID, "approve", req)
	require.NoError(t, err)

	parsed, _ := url.Parse(decided.RedirectURL)
	code := parsed.Query().Get("code")

	_, err = svc.ExchangeToken(ctx, oauth.TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		ClientID:     "client-1",
		RedirectURI:  "https://app.example/cb",
		CodeVerifier: "completely-different-verifier-value-xxxxxxxxxxx",
	})
	assert.ErrorIs(t, err, oauth.ErrInvalidCode)
}

func TestBeginAuthorize_SystemClientBypassesConsent(t *testing.T) {
	store := memory.New(seedScopes())
	svc := newTestService(t, store)
	ctx := context.Background()
	_, challenge := verifierAndChallenge()

	u, c := seedUserAndClient(t, store, true)
	req := baseRequest(c.ClientID, challenge)

	result, err := svc.BeginAuthorize(ctx, u.ID, req)
	require.NoError(t, err)
	assert.Nil(t, result.ConsentRequired)
	assert.True(t, strings.Contains(result.RedirectURL, "code="))

	history, err := store.Consents.FindAllByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, history, "system client flow must not write a consent row")
}

func TestBeginAuthorize_ExistingConsentSkipsPrompt(t *testing.T) {
	store := memory.New(seedScopes())
	svc := newTestService(t, store)
	ctx := context.Background()
	_, challenge := verifierAndChallenge()

	u, _ := seedUserAndClient(t, store, false)
	consentSvc := consent.New(store.Consents)
	_, err := consentSvc.Grant(ctx, u.ID, "client-1", domain.ScopeSet("read write"))
	require.NoError(t, err)

	req := baseRequest("client-1", challenge)
	result, err := svc.BeginAuthorize(ctx, u.ID, req)
	require.NoError(t, err)
	assert.Nil(t, result.ConsentRequired)
	assert.NotEmpty(t, result.RedirectURL)
}

func TestBeginAuthorize_RedirectURIMismatchIsInvalidClient(t *testing.T) {
	store := memory.New(seedScopes())
	svc := newTestService(t, store)
	ctx := context.Background()
	_, challenge := verifierAndChallenge()

	u, _ := seedUserAndClient(t, store, false)
	req := baseRequest("client-1", challenge)
	req.RedirectURI = "https://app.example/cb/" // trailing slash differs

	_, err := svc.BeginAuthorize(ctx, u.ID, req)
	assert.ErrorIs(t, err, oauth.ErrInvalidClient)
}

func TestBeginAuthorize_UnknownScopeIsValidationError(t *testing.T) {
	store := memory.New(seedScopes())
	svc := newTestService(t, store)
	ctx := context.Background()
	_, challenge := verifierAndChallenge()

	u, _ := seedUserAndClient(t, store, false)
	req := baseRequest("client-1", challenge)
	req.Scope = "read admin"

	_, err := svc.BeginAuthorize(ctx, u.ID, req)
	var verr *oauth.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestExchangeToken_RejectsUnsupportedGrantType(t *testing.T) {
	store := memory.New(seedScopes())
	svc := newTestService(t, store)

	_, err := svc.ExchangeToken(context.Background(), oauth.TokenRequest{GrantType: "refresh_token"})
	var verr *oauth.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestDecideConsent_DenyReturnsError(t *testing.T) {
	store := memory.New(seedScopes())
	svc := newTestService(t, store)
	ctx := context.Background()
	_, challenge := verifierAndChallenge()

	u, _ := seedUserAndClient(t, store, false)
	req := baseRequest("client-1", challenge)

	_, err := svc.DecideConsent(ctx, u.ID, "deny", req)
	assert.ErrorIs(t, err, oauth.ErrDenyConsent)
}
