package auth

import (
	"fmt"

	"dispatchline/internal/domain"
)

const (
	// PermDispatch lets a principal see every call and assign any unit.
	PermDispatch = "dispatch"
	// PermUnit lets a principal see accepted calls and update assignments.
	PermUnit = "unit"
)

// Roles maps an API key role to the permissions it grants.
var Roles = map[string][]string{
	PermDispatch: {PermDispatch, PermUnit},
	PermUnit:     {PermUnit},
}

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

// PermissionsForRole returns the permissions granted to role, or nil when unknown.
func PermissionsForRole(role string) []string {
	perms, ok := Roles[role]
	if !ok {
		return nil
	}
	return append([]string(nil), perms...)
}

func HasPermission(perms []string, perm string) bool {
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// Require returns ForbiddenError when perm is absent.
func Require(perms []string, perm string) error {
	if HasPermission(perms, perm) {
		return nil
	}
	return ForbiddenError{Permission: perm}
}

// CanSeeCall reports whether a principal may see call. Units only see accepted calls.
func CanSeeCall(perms []string, call domain.Call) bool {
	if HasPermission(perms, PermDispatch) {
		return true
	}
	return HasPermission(perms, PermUnit) && call.Status == domain.CallStatusAccepted
}
