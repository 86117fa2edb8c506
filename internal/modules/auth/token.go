package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const refreshTokenBytes = 32

// newRefreshSecret draws a fresh opaque refresh token. 32 bytes of entropy,
// hex encoded so it is safe in JSON bodies, cookies and URLs alike.
func newRefreshSecret() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken derives the storage key for a raw refresh token. The pepper is a
// server-side secret, so a leaked token table alone is not enough to mint
// valid lookups.
func HashToken(raw, pepper string) string {
	sum := sha256.Sum256([]byte(raw + pepper))
	return hex.EncodeToString(sum[:])
}
