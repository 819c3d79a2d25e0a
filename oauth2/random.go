package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// Artifact entropy and user code shape.
const (
	tokenValueLength = 32 // opaque token bytes (256 bits)
	authCodeLength   = 32 // authorization code bytes
	deviceCodeLength = 32 // device_code bytes
	userCodeLength   = 8  // user_code characters
	userCodeChunk    = 4  // "WDJB-MJHT" grouping

	userCodeCharset = "BCDFGHJKLMNPQRSTVWXYZ23456789" // no vowels, no 0/1
)

// generateSecret returns a URL-safe opaque secret of length random bytes.
func generateSecret(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// generateUserCode generates a short human-typed code, chunked with
// dashes for readability.
func generateUserCode() (string, error) {
	b := make([]byte, userCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes for user code: %w", err)
	}

	for i := range b {
		b[i] = userCodeCharset[int(b[i])%len(userCodeCharset)]
	}

	var result strings.Builder
	for i, char := range b {
		if i > 0 && i%userCodeChunk == 0 {
			result.WriteByte('-')
		}
		result.WriteByte(char)
	}
	return result.String(), nil
}
