package models

import (
	"fmt"
	"strings"
	"time"
)

// Role represents the closed set of access levels.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
	RoleCoach   Role = "coach"
	RoleParent  Role = "parent"
)

// Roles lists every valid role.
var Roles = []Role{RoleStudent, RoleAdmin, RoleCoach, RoleParent}

// ParseRole normalises raw into a Role, rejecting unknown values.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleCoach:
		return RoleCoach, nil
	case RoleParent:
		return RoleParent, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Identity is the validated representation of the calling user.
type Identity struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Role          Role   `json:"role"`
	EmailVerified bool   `json:"email_verified"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// User is the account document kept in the users collection.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"passwordHash,omitempty"`
	FullName         string     `json:"fullName"`
	Role             Role       `json:"role"`
	EmailVerified    bool       `json:"emailVerified"`
	Disabled         bool       `json:"disabled"`
	TokensValidAfter *time.Time `json:"tokensValidAfter,omitempty"`
	LastLogin        *time.Time `json:"lastLogin,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Identity projects the user onto the identity attached to requests.
func (u *User) Identity() *Identity {
	return &Identity{ID: u.ID, Email: u.Email, Role: u.Role, EmailVerified: u.EmailVerified}
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role     *Role
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
