package crypto_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	icrypto "github.com/coreauth/oauthserver/internal/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptHasher_HashAndCompare(t *testing.T) {
	h := icrypto.NewBcryptHasher(4) // low cost for fast tests
	hash, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)

	assert.NoError(t, h.Compare(hash, "correct horse battery staple"))
	assert.Error(t, h.Compare(hash, "wrong password"))
}

func TestVerifyPKCE_S256(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	assert.True(t, icrypto.VerifyPKCE(verifier, challenge, "S256"))
	assert.False(t, icrypto.VerifyPKCE("wrong-verifier", challenge, "S256"))
}

func TestVerifyPKCE_Plain(t *testing.T) {
	assert.True(t, icrypto.VerifyPKCE("same-value", "same-value", "plain"))
	assert.False(t, icrypto.VerifyPKCE("a", "b", "plain"))
}

func TestVerifyPKCE_UnknownMethod(t *testing.T) {
	assert.False(t, icrypto.VerifyPKCE("x", "x", "none"))
}

func TestGenerateSecureToken_Unique(t *testing.T) {
	a, err := icrypto.GenerateSecureToken(32)
	require.NoError(t, err)
	b, err := icrypto.GenerateSecureToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestJWTProvider_IssueAndValidate(t *testing.T) {
	pemKey := generateTestRSAKeyPEM(t)
	provider, err := icrypto.NewJWTProvider(pemKey, "sig-1", "https://auth.example.local", "api")
	require.NoError(t, err)

	token, err := provider.IssueAccessToken("user-123", "user@example.test", "client-abc", "read write", time.Hour)
	require.NoError(t, err)

	claims, err := provider.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "user@example.test", claims.Email)
	assert.Equal(t, "client-abc", claims.ClientID)
	assert.Equal(t, "read write", claims.Scope)
	assert.Equal(t, "https://auth.example.local", claims.Issuer)
}

func TestJWTProvider_RejectsExpiredToken(t *testing.T) {
	pemKey := generateTestRSAKeyPEM(t)
	provider, err := icrypto.NewJWTProvider(pemKey, "sig-1", "https://auth.example.local", "api")
	require.NoError(t, err)

	token, err := provider.IssueAccessToken("user-123", "user@example.test", "client-abc", "read", -time.Minute)
	require.NoError(t, err)

	_, err = provider.ValidateToken(token)
	assert.ErrorIs(t, err, icrypto.ErrExpiredToken)
}

func TestJWTProvider_JWKSExposesKeyID(t *testing.T) {
	pemKey := generateTestRSAKeyPEM(t)
	provider, err := icrypto.NewJWTProvider(pemKey, "sig-1", "https://auth.example.local", "api")
	require.NoError(t, err)

	jwks := provider.JWKS()
	require.Len(t, jwks.Keys, 1)
	assert.Equal(t, "sig-1", jwks.Keys[0].Kid)
	assert.Equal(t, "RSA", jwks.Keys[0].Kty)
}

func generateTestRSAKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der := x509.MarshalPKCS1PrivateKey(key)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}
	return string(pem.EncodeToMemory(block))
}
