package auth

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleOperator, PermInstCmd, true},
		{RoleOperator, PermSetVar, true},
		{RoleOperator, PermShutdown, false},
		{RoleAdmin, PermInstCmd, true},
		{RoleAdmin, PermSetVar, true},
		{RoleAdmin, PermShutdown, true},
		{Role("viewer"), PermInstCmd, false},
		{Role(""), PermShutdown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.perm), func(t *testing.T) {
			if got := HasPermission(tt.role, tt.perm); got != tt.want {
				t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.perm, got, tt.want)
			}
		})
	}
}

func TestPermissionsForRole_ReturnsCopy(t *testing.T) {
	perms := PermissionsForRole(RoleOperator)
	if len(perms) != 2 {
		t.Fatalf("operator permissions = %v", perms)
	}
	perms[0] = PermShutdown
	if HasPermission(RoleOperator, PermShutdown) {
		t.Error("mutating the returned slice changed the role model")
	}
}
