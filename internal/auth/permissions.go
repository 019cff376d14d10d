package auth

import "slices"

// Permission represents a named capability in the system.
type Permission string

const (
	PermInstCmd  Permission = "ups:instcmd"
	PermSetVar   Permission = "ups:setvar"
	PermShutdown Permission = "ups:fsd"
)

// rolePermissions is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleOperator: {
		PermInstCmd,
		PermSetVar,
	},
	RoleAdmin: {
		PermInstCmd,
		PermSetVar,
		PermShutdown,
	},
}

// HasPermission reports whether role grants perm. Unknown roles grant nothing.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// PermissionsForRole returns a copy of the permissions granted to role.
func PermissionsForRole(role Role) []Permission {
	return slices.Clone(rolePermissions[role])
}
