package crypto

import "crypto/subtle"

// SecureCompare performs a constant-time comparison of two strings. It is
// used by VerifyPKCE to compare the derived and the stored code challenge.
func SecureCompare(provided, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
