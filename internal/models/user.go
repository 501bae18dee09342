package models

import (
	"time"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// User mirrors what the external identity provider knows about an account.
// The service never writes users; the directory is the source of truth.
type User struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`

	IsStaff bool     `json:"is_staff"`
	Groups  []string `json:"groups"`

	CreatedAt time.Time `json:"created_at"`
}

// TeacherGroup is the directory group that grants teacher rights alongside
// the staff flag.
const TeacherGroup = "Teachers"

// IsTeacher applies the directory rule: staff flag or membership in the
// Teachers group.
func (u *User) IsTeacher() bool {
	if u.IsStaff || u.Role == RoleTeacher || u.Role == RoleAdmin {
		return true
	}
	for _, g := range u.Groups {
		if g == TeacherGroup {
			return true
		}
	}
	return false
}
