package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the authorisation tier carried in a token.
type Role string

const (
	// RoleOperator may run instant commands and write variables.
	RoleOperator Role = "operator"

	// RoleAdmin may additionally raise the forced shutdown flag.
	RoleAdmin Role = "admin"
)

// ValidRoles lists the roles a token may carry.
var ValidRoles = []Role{RoleOperator, RoleAdmin}

// ParseRole returns the Role named by s (case-insensitive).
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range ValidRoles {
		if r == v {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// Sentinel errors; check with errors.Is().
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrForbidden    = errors.New("insufficient permissions")
	ErrInvalidRole  = errors.New("invalid role")
	ErrNoSecret     = errors.New("jwt secret is not configured")
)
