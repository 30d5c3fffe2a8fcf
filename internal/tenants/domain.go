// Package tenants persists societies, the top-level isolation unit.
package tenants

import "time"

// Status values for a tenant.
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

// Tenant is one onboarded society.
type Tenant struct {
	ID        int64
	Name      string
	Address   string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
