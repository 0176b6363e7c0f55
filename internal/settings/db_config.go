package settings

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// snapshot is an immutable view of the settings table.
type snapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

var current atomic.Pointer[snapshot]

func init() {
	current.Store(&snapshot{values: map[string]json.RawMessage{}})
}

// Store replaces the in-memory settings snapshot.
func Store(updatedAt time.Time, values map[string]json.RawMessage) {
	next := &snapshot{updatedAt: updatedAt.UTC(), values: make(map[string]json.RawMessage, len(values))}
	for k, v := range values {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		next.values[key] = append(json.RawMessage(nil), v...)
	}
	current.Store(next)
}

// UpdatedAt returns the newest update time in the snapshot.
func UpdatedAt() time.Time {
	return current.Load().updatedAt
}

// Value returns a copy of the raw JSON stored under key.
func Value(key string) (json.RawMessage, bool) {
	val, ok := current.Load().values[strings.TrimSpace(key)]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), val...), true
}

// All returns a copy of every stored value.
func All() map[string]json.RawMessage {
	snap := current.Load()
	out := make(map[string]json.RawMessage, len(snap.values))
	for k, v := range snap.values {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// String returns the string stored under key, or fallback.
func String(key, fallback string) string {
	raw, ok := Value(key)
	if !ok {
		return fallback
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal != nil || strings.TrimSpace(s) == "" {
		return fallback
	}
	return strings.TrimSpace(s)
}

// Int returns the integer stored under key, or fallback.
// Numbers, whole floats and numeric strings are accepted.
func Int(key string, fallback int) int {
	raw, ok := Value(key)
	if !ok {
		return fallback
	}
	if n, okParse := parseInt(raw); okParse {
		return n
	}
	return fallback
}

// SiteName returns the configured portal name.
func SiteName() string {
	return String(SiteNameKey, DefaultSiteName)
}

func parseInt(raw json.RawMessage) (int, bool) {
	var f float64
	if errUnmarshal := json.Unmarshal(raw, &f); errUnmarshal == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		if n, errParse := strconv.Atoi(strings.TrimSpace(s)); errParse == nil {
			return n, true
		}
	}
	return 0, false
}
