// Package authz is the single place that decides whether a user holds a capability.
package authz

import (
	"reflect"
	"strings"
)

// Principal is anything carrying a role name and the permission names of that role.
type Principal interface {
	RoleName() string
	PermissionNames() []string
}

// IsAdmin reports whether the principal's role is the admin role.
func IsAdmin(p Principal) bool {
	if isNil(p) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(p.RoleName()), RoleAdmin)
}

// HasPermission reports whether p may use a feature gated by required.
// No requirement allows any signed-in user; the admin role and the "all" sentinel
// always allow; otherwise any overlap between required and the granted names allows.
func HasPermission(p Principal, required ...string) bool {
	if isNil(p) {
		return false
	}
	if len(required) == 0 {
		return true
	}
	if IsAdmin(p) {
		return true
	}
	for _, r := range required {
		if r == PermAll {
			return true
		}
	}
	granted := make(map[string]struct{})
	for _, name := range p.PermissionNames() {
		granted[name] = struct{}{}
	}
	for _, r := range required {
		if _, ok := granted[r]; ok {
			return true
		}
	}
	return false
}

func isNil(p Principal) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
