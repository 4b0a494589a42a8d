// Package security implements the legacy password hasher (C1) and the
// input validators and sanitizer (C2).
package security

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

// ErrEmptyPassword is returned by Hash when the password is empty.
var ErrEmptyPassword = errors.New("security: password cannot be empty")

// Hash returns md5(password) when salt is empty, otherwise
// sha256(password || salt), both lowercase hex. This preserves the
// legacy behavior of the reference implementation; see DESIGN.md for
// why a stronger KDF is not used here.
func Hash(password, salt string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if salt == "" {
		sum := md5.Sum([]byte(password))
		return hex.EncodeToString(sum[:]), nil
	}
	sum := sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the hash for password/salt and compares it to
// storedHash in constant time. Empty password or empty stored hash
// always fails closed.
func Verify(password, storedHash, salt string) bool {
	if password == "" || storedHash == "" {
		return false
	}
	computed, err := Hash(password, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

// FingerprintRefreshToken returns the SHA-256 hex digest used to index
// refresh_tokens.token_hash. Unlike Hash, this never falls back to MD5:
// the refresh-token fingerprint is unconditionally SHA-256 (spec §4.1).
func FingerprintRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
