package models

import (
	"fmt"
	"strings"
)

// Role is an authorization role attached to a user.
type Role string

const (
	// RoleUser is granted to every account
	RoleUser Role = "USER"
	// RoleAdmin grants access to administrative routes
	RoleAdmin Role = "ADMIN"
)

// ParseRole converts a textual role into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleUser, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Roles is a small set of roles. Order is kept stable, duplicates are dropped.
type Roles []Role

// NewRoles builds a role set that always contains RoleUser.
func NewRoles(roles ...Role) Roles {
	out := Roles{RoleUser}
	for _, r := range roles {
		if !out.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// ParseRoles decodes a comma separated list, as stored in the database
// and in access token claims.
func ParseRoles(s string) (Roles, error) {
	var out Roles
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		r, err := ParseRole(part)
		if err != nil {
			return nil, err
		}
		if !out.Has(r) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty role list")
	}
	return out, nil
}

// String encodes the set as a comma separated list.
func (rs Roles) String() string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

// Has reports whether the set contains role.
func (rs Roles) Has(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// HasAny reports whether at least one of required is present.
// An empty requirement is satisfied by any set.
func (rs Roles) HasAny(required ...Role) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if rs.Has(r) {
			return true
		}
	}
	return false
}

// HasAll reports whether every role in required is present.
func (rs Roles) HasAll(required ...Role) bool {
	for _, r := range required {
		if !rs.Has(r) {
			return false
		}
	}
	return true
}
