package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// secretCodeBytes is the entropy of a magic-link secret code. 32 bytes of
// randomness encodes to a fixed-length 43 character base64url string.
const secretCodeBytes = 32

// GenerateToken returns a URL-safe random token with n bytes of entropy.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateSecretCode returns a fresh magic-link secret code.
func GenerateSecretCode() (string, error) {
	return GenerateToken(secretCodeBytes)
}

// HashToken returns the hex-encoded SHA-256 digest of a token. Only hashes
// are persisted; a leaked database row cannot be replayed as a link.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
