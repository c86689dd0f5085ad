// Package entity contains the core business objects of the project.
package entity

import (
	"fmt"
	"slices"

	domainerrors "phonebook/internal/domain/errors"
)

// Role represents the type of role a user can have in the system.
type Role string

const (
	// RoleAdmin can read, create, update and delete contacts.
	RoleAdmin Role = "admin"
	// RoleModerator can read, create and update contacts.
	RoleModerator Role = "moderator"
	// RoleUser is assigned on registration.
	RoleUser Role = "user"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the Role is a valid value.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleUser:
		return true
	default:
		return false
	}
}

// Roles is a slice of Role for convenience.
type Roles []Role

// Contains checks if the roles slice contains a specific role.
func (rs Roles) Contains(role Role) bool {
	return slices.Contains(rs, role)
}

// ToStrings converts Roles to []string.
func (rs Roles) ToStrings() []string {
	result := make([]string, len(rs))
	for i, r := range rs {
		result[i] = r.String()
	}

	return result
}

// RoleGate is the static allow-set bound to one operation.
// Roles are flat: admin is not implicitly granted what a gate does not list.
type RoleGate struct {
	allowed Roles
}

// NewRoleGate builds a gate admitting exactly the given roles, in order, without duplicates.
func NewRoleGate(roles ...Role) RoleGate {
	allowed := make(Roles, 0, len(roles))
	for _, role := range roles {
		if !allowed.Contains(role) {
			allowed = append(allowed, role)
		}
	}

	return RoleGate{allowed: allowed}
}

// Allowed returns a copy of the allow-set.
func (g RoleGate) Allowed() Roles {
	return slices.Clone(g.allowed)
}

// Authorize returns ErrForbidden unless the user's role is in the allow-set.
func (g RoleGate) Authorize(user *User) error {
	if user == nil || !g.allowed.Contains(user.Role) {
		role := "<none>"
		if user != nil {
			role = user.Role.String()
		}

		return domainerrors.ErrForbidden.WithDetails(fmt.Sprintf("role %s not in %v", role, g.allowed.ToStrings()))
	}

	return nil
}
