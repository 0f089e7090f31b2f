package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// NewInviteToken returns 32 random bytes, hex encoded.
func NewInviteToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
