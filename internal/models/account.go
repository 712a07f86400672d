package models

import (
	"fmt"
	"time"
)

// Role is the closed set of account roles
type Role string

const (
	RoleTeacher    Role = "teacher"
	RoleStudent    Role = "student"
	RoleModerator  Role = "moderator"
	RoleSuperAdmin Role = "super_admin"
)

// Roles lists every valid role
var Roles = []Role{RoleTeacher, RoleStudent, RoleModerator, RoleSuperAdmin}

// ParseRole converts a string into a Role, rejecting unknown values
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Account is a stored user account including its credentials
type Account struct {
	ID                 int64
	Name               string
	Email              string
	TeacherID          *int64
	PasswordHash       string `json:"-"`
	Role               Role
	Phone              *string
	Image              *string
	Active             bool
	RefreshToken       *string    `json:"-"`
	RefreshTokenExpiry *time.Time `json:"-"`
	ResetToken         *string    `json:"-"`
	ResetTokenExpiry   *time.Time `json:"-"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasResetToken reports whether a reset token and its expiry are both recorded
func (a *Account) HasResetToken() bool {
	return a.ResetToken != nil && a.ResetTokenExpiry != nil
}

// ResetTokenExpired checks if the recorded reset token expired before now
func (a *Account) ResetTokenExpired(now time.Time) bool {
	return a.ResetTokenExpiry == nil || a.ResetTokenExpiry.Before(now)
}

// Profile returns the non-sensitive projection of the account
func (a *Account) Profile() *Profile {
	return &Profile{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Role:      a.Role,
		Phone:     a.Phone,
		Image:     a.Image,
		TeacherID: a.TeacherID,
		Active:    a.Active,
		CreatedAt: a.CreatedAt,
	}
}

// Profile is the account view exposed to handlers as the current user.
// It never carries the password hash or any token.
type Profile struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Phone     *string   `json:"phone,omitempty"`
	Image     *string   `json:"image,omitempty"`
	TeacherID *int64    `json:"teacherId,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}
