package util

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestMaskSensitiveQuery(t *testing.T) {
	got := MaskSensitiveQuery("token=eyJhbGciOiJIUzI1NiJ9.payload.sig&year=2025&x-api-key=sp_abcdefghijkl")
	if strings.Contains(got, "payload") || strings.Contains(got, "abcdefghijkl") {
		t.Fatalf("secrets leaked: %q", got)
	}
	if !strings.Contains(got, "year=2025") {
		t.Fatalf("plain params must be kept: %q", got)
	}
	if MaskSensitiveQuery("q=F601") != "q=F601" {
		t.Fatalf("query without secrets must be unchanged")
	}
}

func TestMaskSecret(t *testing.T) {
	cases := map[string]string{
		"sp_1234567890": "sp_1...7890",
		"abcdef":        "ab...ef",
		"abc":           "a...c",
		"ab":            "ab",
	}
	for in, want := range cases {
		if got := MaskSecret(in); got != want {
			t.Fatalf("MaskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStatePathPrefersWritablePath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WRITABLE_PATH", dir)
	if got := StatePath("stationctl", "session.json"); got != filepath.Join(dir, "stationctl", "session.json") {
		t.Fatalf("unexpected path %q", got)
	}
}
