package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// SigningSecretSize is the byte length of generated JWT signing secrets.
// 32 bytes matches the HMAC-SHA-256 block requirement.
const SigningSecretSize = 32

// GenerateSigningSecret generates a random signing secret for token
// issuance, returned as a 64-character hex string.
func GenerateSigningSecret() (string, error) {
	key := make([]byte, SigningSecretSize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate signing secret: %w", err)
	}
	return hex.EncodeToString(key), nil
}
