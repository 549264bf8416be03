package models

import (
	"fmt"
	"strings"
)

// Role is an access tag carried in credentials and matched exactly against route policies.
// Roles form a set, not a hierarchy.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
	RoleUser    Role = "user"
)

// DefaultRole is assigned to self-registered and federated accounts.
const DefaultRole = RoleUser

// Roles returns the full role vocabulary.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleStaff, RoleUser}
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStaff, RoleUser:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole normalizes s and checks it against the vocabulary.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
