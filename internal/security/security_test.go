package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("secret", 7, "alice", 3, time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 7 || claims.Username() != "alice" || claims.TokenVersion != 3 {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	token, _ := GenerateToken("secret", 1, "bob", 0, time.Minute)
	if _, err := ParseToken("other", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	expired, _ := GenerateToken("secret", 1, "bob", 0, -time.Minute)
	if _, err := ParseToken("secret", expired); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
	if _, err := GenerateToken(" ", 1, "bob", 0, time.Minute); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "hunter22") || CheckPassword(hash, "wrong") {
		t.Fatalf("password check mismatch")
	}
	if ValidatePassword("12345") == nil || ValidatePassword("123456") != nil {
		t.Fatalf("unexpected password validation result")
	}
}

func TestGenerateAPIKey(t *testing.T) {
	id1, key1, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	id2, key2, _ := GenerateAPIKey()
	if id1 == id2 || key1 == key2 {
		t.Fatalf("expected unique keys")
	}
	if !strings.HasPrefix(key1, "sp_") || len(key1) != len("sp_")+43 {
		t.Fatalf("unexpected key format %q", key1)
	}
	if len(id1) != 36 {
		t.Fatalf("expected uuid id, got %q", id1)
	}
}
