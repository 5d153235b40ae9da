package models

import "fmt"

// Role is a space membership role. The set is closed: owner > admin > member.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

var roleRank = map[Role]int{
	RoleOwner:  3,
	RoleAdmin:  2,
	RoleMember: 1,
}

// ParseRole rejects anything outside the three known roles instead of defaulting.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleRank[r]; !ok {
		return "", fmt.Errorf("invalid space role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Rank is 0 for an invalid role, so an invalid role never dominates anything.
func (r Role) Rank() int {
	return roleRank[r]
}

// Dominates reports whether r grants at least the privileges of required.
func (r Role) Dominates(required Role) bool {
	if !r.Valid() || !required.Valid() {
		return false
	}
	return r.Rank() >= required.Rank()
}

func (r Role) String() string {
	return string(r)
}
