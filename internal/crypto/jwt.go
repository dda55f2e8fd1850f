package crypto

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// AccessTokenClaims is the claim set of an issued access token.
type AccessTokenClaims struct {
	Email    string `json:"email"`
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenProvider issues and validates RS256 access tokens and publishes
// the corresponding JWKS.
type TokenProvider interface {
	IssueAccessToken(subject, email, clientID, scope string, ttl time.Duration) (string, error)
	ValidateToken(tokenString string) (*AccessTokenClaims, error)
	JWKS() JWKS
}

// JWK is one entry of a JSON Web Key Set.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

// JWKS is a JSON Web Key Set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWTProvider implements TokenProvider using RSA-SHA256 (RS256).
type JWTProvider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	kid        string
	issuer     string
	audience   string
}

// NewJWTProvider builds a provider from PEM-encoded RSA private key
// content (PKCS1 or PKCS8).
func NewJWTProvider(privateKeyPEM, kid, issuer, audience string) (*JWTProvider, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, errors.New("jwt: failed to parse PEM block containing the private key")
	}

	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		key, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err2 != nil {
			return nil, fmt.Errorf("jwt: parse private key: %w / %w", err, err2)
		}
		var ok bool
		priv, ok = key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("jwt: key is not an RSA private key")
		}
	}

	return &JWTProvider{
		privateKey: priv,
		publicKey:  &priv.PublicKey,
		kid:        kid,
		issuer:     issuer,
		audience:   audience,
	}, nil
}

// IssueAccessToken signs a new access token for subject (the user id),
// scoped to clientID and scope, expiring after ttl.
func (p *JWTProvider) IssueAccessToken(subject, email, clientID, scope string, ttl time.Duration) (string, error) {
	now := time.Now()
	jti, err := GenerateSecureToken(16)
	if err != nil {
		return "", fmt.Errorf("generate jti: %w", err)
	}
	claims := AccessTokenClaims{
		Email:    email,
		ClientID: clientID,
		Scope:    scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = p.kid
	signed, err := token.SignedString(p.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies an access token.
func (p *JWTProvider) ValidateToken(tokenString string) (*AccessTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.publicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessTokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// JWKS returns the public key as a JSON Web Key Set.
func (p *JWTProvider) JWKS() JWKS {
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(p.publicKey.E)).Bytes())
	n := base64.RawURLEncoding.EncodeToString(p.publicKey.N.Bytes())

	return JWKS{
		Keys: []JWK{{
			Kty: "RSA",
			Kid: p.kid,
			Use: "sig",
			N:   n,
			E:   e,
			Alg: "RS256",
		}},
	}
}
