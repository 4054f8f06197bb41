package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// DefaultTokenBytes gives 256 bits of entropy, rendered as 64 hex characters.
const DefaultTokenBytes = 32

// GenerateToken returns n random bytes from crypto/rand as a hex string.
func GenerateToken(n int) (string, error) {
	return GenerateTokenFrom(rand.Reader, n)
}

// GenerateTokenFrom reads n bytes from r. Fewer than 16 bytes is raised to 16.
func GenerateTokenFrom(r io.Reader, n int) (string, error) {
	if n < 16 {
		n = 16
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
