package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// New generates a cryptographically random 64-character hex token. Used as
// the opaque per-subscriber unsubscribe token.
func New() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
