package auth

import (
	"fmt"

	"github.com/nerrad567/gray-logic-persist/internal/persistence"
)

// Permission represents a named capability in the admin API.
type Permission string

// Permission constants.
const (
	PermSchemaRead    Permission = "schema:read"
	PermSchemaMigrate Permission = "schema:migrate"
	PermAuditRead     Permission = "audit:read"
	PermStatsRead     Permission = "stats:read"
)

// rolePermissions maps each role to its granted permissions.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermSchemaRead,
		PermAuditRead,
		PermStatsRead,
	},
	RoleAdmin: {
		PermSchemaRead,
		PermSchemaMigrate,
		PermAuditRead,
		PermStatsRead,
	},
	RoleOwner: {
		PermSchemaRead,
		PermSchemaMigrate,
		PermAuditRead,
		PermStatsRead,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns a copy of the permissions granted to role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}

// Authorise returns nil when role holds perm, otherwise an error matching
// persistence.ErrUnauthorized.
func Authorise(role Role, perm Permission) error {
	if HasPermission(role, perm) {
		return nil
	}
	return persistence.Unauthorised(fmt.Sprintf("role %q lacks %s", role, perm))
}
