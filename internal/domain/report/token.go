package report

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewShareTokenValue returns a crypto-random 32-byte token as 64 hex chars.
func NewShareTokenValue() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
