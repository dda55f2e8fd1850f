package crypto

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateSecureToken returns a random URL-safe string built from n random
// bytes, used for authorization codes, opaque session ids, and client
// secrets.
func GenerateSecureToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(b), nil
}

// GenerateAuthCode returns a fresh authorization code value.
func GenerateAuthCode() (string, error) {
	return GenerateSecureToken(32)
}

// GenerateSessionID returns a fresh opaque session identifier.
func GenerateSessionID() (string, error) {
	return GenerateSecureToken(32)
}

// GenerateClientSecret returns a fresh 32-character client secret drawn
// from [A-Za-z0-9_-] via a CSPRNG. The caller is responsible for hashing
// it before storage; the plaintext is returned to the caller exactly
// once. 24 random bytes base64url-encode to exactly 32 characters.
func GenerateClientSecret() (string, error) {
	return GenerateSecureToken(24)
}
