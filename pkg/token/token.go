package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// DefaultLength is the byte length of generated tokens; the hex encoding
// doubles it on the wire.
const DefaultLength = 20

// New returns a cryptographically random opaque token as a lowercase hex
// string. Tokens are unguessable and carry no embedded information.
func New() (string, error) {
	return NewWithLength(DefaultLength)
}

func NewWithLength(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
