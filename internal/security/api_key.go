package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// apiKeyPrefix is the prefix used for generated API keys.
const apiKeyPrefix = "sp_"

// GenerateAPIKey creates a new key id and a URL-safe random secret.
func GenerateAPIKey() (id string, secret string, err error) {
	raw := make([]byte, 32)
	if _, err = io.ReadFull(rand.Reader, raw); err != nil {
		return "", "", fmt.Errorf("generate api key: %w", err)
	}
	return uuid.NewString(), apiKeyPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}
