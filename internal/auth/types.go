package auth

import "errors"

// Role represents an authorisation tier for API callers.
type Role string

const (
	// RoleViewer can inspect schema state, statistics and the audit log.
	RoleViewer Role = "viewer"

	// RoleAdmin can additionally apply schema migrations.
	RoleAdmin Role = "admin"

	// RoleOwner has every permission.
	RoleOwner Role = "owner"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleAdmin, RoleOwner}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Sentinel errors for token handling.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenMissing = errors.New("missing bearer token")
)
