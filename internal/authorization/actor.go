package authorization

import (
	"strings"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleDirector   Role = "DIRECTOR"
	RoleAccountant Role = "ACCOUNTANT"
	RoleTeacher    Role = "TEACHER"
	RoleParent     Role = "PARENT"
	RoleStudent    Role = "STUDENT"
)

func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	switch role {
	case RoleAdmin, RoleDirector, RoleAccountant, RoleTeacher, RoleParent, RoleStudent:
		return role, nil
	}
	return "", ErrInvalidRole
}

// Actor is the authenticated caller. Privileged actors may see and upload
// documents owned by anyone.
type Actor struct {
	ID         snowflake.ID
	Role       Role
	Privileged bool
}

func (a Actor) subject() string {
	return "user:" + a.ID.String()
}

func roleSubject(role Role) string {
	return "role:" + strings.ToLower(string(role))
}
