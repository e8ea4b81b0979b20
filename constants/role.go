package constants

import (
	"fmt"
	"strings"
)

// UserRole is the caller role forwarded by the auth gateway.
type UserRole string

const (
	RoleStaff  UserRole = "staff"
	RoleClient UserRole = "client"
	RoleAdmin  UserRole = "admin"
)

var allRoles = []UserRole{RoleStaff, RoleClient, RoleAdmin}

// ParseUserRole validates a role string from request metadata.
func ParseUserRole(input string) (UserRole, error) {
	r := UserRole(strings.ToLower(strings.TrimSpace(input)))
	for _, v := range allRoles {
		if v == r {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown user role %q", input)
}
