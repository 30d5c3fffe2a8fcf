// Package users stores tenant user accounts.
package users

import "time"

// Status values for a user account.
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

// User is a tenant-scoped member account. RoleCode is the primary role; extra
// grants live in the rbac package.
type User struct {
	ID           int64
	TenantID     int64
	FullName     string
	Email        string
	Mobile       string
	PasswordHash string
	RoleCode     string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
