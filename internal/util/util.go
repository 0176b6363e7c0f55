package util

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// WritablePath returns the cleaned WRITABLE_PATH environment variable, or "" when unset.
func WritablePath() string {
	for _, key := range []string{"WRITABLE_PATH", "writable_path"} {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return filepath.Clean(value)
		}
	}
	return ""
}

// StatePath returns the path of name inside the per-application state directory.
// WRITABLE_PATH wins over the user's home directory.
func StatePath(app, name string) string {
	if base := WritablePath(); base != "" {
		return filepath.Join(base, app, name)
	}
	if home, errHome := os.UserHomeDir(); errHome == nil && home != "" {
		return filepath.Join(home, "."+app, name)
	}
	return filepath.Join("."+app, name)
}

// MaskSecret keeps only the edges of a secret so it can be logged or listed.
func MaskSecret(secret string) string {
	switch n := len(secret); {
	case n > 8:
		return secret[:4] + "..." + secret[n-4:]
	case n > 4:
		return secret[:2] + "..." + secret[n-2:]
	case n > 2:
		return secret[:1] + "..." + secret[n-1:]
	default:
		return secret
	}
}

// MaskSensitiveQuery masks token, key and secret parameters of a raw query string.
// Parameter order and untouched pairs are preserved.
func MaskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	pairs := strings.Split(raw, "&")
	changed := false
	for i, pair := range pairs {
		key, value, _ := strings.Cut(pair, "=")
		if decoded, errKey := url.QueryUnescape(key); errKey == nil {
			key = decoded
		}
		if !isSensitiveParam(key) {
			continue
		}
		if decoded, errValue := url.QueryUnescape(value); errValue == nil {
			value = decoded
		}
		rawKey, _, _ := strings.Cut(pair, "=")
		pairs[i] = rawKey + "=" + url.QueryEscape(MaskSecret(strings.TrimSpace(value)))
		changed = true
	}
	if !changed {
		return raw
	}
	return strings.Join(pairs, "&")
}

func isSensitiveParam(key string) bool {
	key = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(key)), "[]")
	if key == "" {
		return false
	}
	if key == "key" || key == "password" {
		return true
	}
	for _, marker := range []string{"api-key", "apikey", "api_key", "token", "secret"} {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}
