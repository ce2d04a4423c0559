package models

import "fmt"

// Role enumerates every actor kind in the thesis workflow.
type Role string

const (
	RoleStudent    Role = "student"
	RoleConsultant Role = "consultant"
	RoleSupervisor Role = "supervisor"
	RoleReviewer   Role = "reviewer"
	RoleHOD        Role = "head_of_department"
	RoleDean       Role = "dean"
	RoleAdmin      Role = "admin"
)

// rolePrecedence is the authoritative ordering consulted by authorization
// checks. Higher values outrank lower ones.
var rolePrecedence = map[Role]int{
	RoleStudent:    1,
	RoleConsultant: 2,
	RoleSupervisor: 3,
	RoleReviewer:   4,
	RoleHOD:        5,
	RoleDean:       6,
	RoleAdmin:      7,
}

// Precedence returns the role's rank in the hierarchy, 0 for unknown roles.
func (r Role) Precedence() int {
	return rolePrecedence[r]
}

// AtLeast reports whether the role outranks or equals the other role.
func (r Role) AtLeast(other Role) bool {
	return r.Precedence() >= other.Precedence()
}

// Valid reports whether the role is a known variant.
func (r Role) Valid() bool {
	_, ok := rolePrecedence[r]
	return ok
}

// ReviewingRoles are the staff roles that can hold a thesis assignment.
func ReviewingRoles() []Role {
	return []Role{RoleSupervisor, RoleConsultant, RoleReviewer}
}

// ParseReviewingRole validates a role string against the reviewing roles.
func ParseReviewingRole(raw string) (Role, error) {
	role := Role(raw)
	switch role {
	case RoleSupervisor, RoleConsultant, RoleReviewer:
		return role, nil
	}
	return "", fmt.Errorf("unknown reviewing role %q", raw)
}
