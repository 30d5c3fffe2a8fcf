// Package rootaccount manages the platform-level root credential: bootstrap,
// login with lockout, token refresh, password rotation, and society
// onboarding.
package rootaccount

import "time"

// LoginID is the fixed login of the singleton root account.
const LoginID = "root.admin"

// Account states.
const (
	StateUninitialized = "UNINITIALIZED"
	StateActive        = "ACTIVE"
	StateLocked        = "LOCKED"
)

// Account is the singleton root credential record. TokenVersion only ever
// increases; every issued root token embeds the version current at mint time.
type Account struct {
	ID                     int64
	LoginID                string
	Email                  string
	Mobile                 string
	PasswordHash           string
	EmailVerified          bool
	MobileVerified         bool
	Active                 bool
	PasswordChangeRequired bool
	FailedLoginAttempts    int
	LockedUntil            *time.Time
	LastLoginAt            *time.Time
	TokenVersion           int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// State derives the lifecycle state from the record.
func (a *Account) State(now time.Time) string {
	if a.PasswordHash == "" {
		return StateUninitialized
	}
	if a.LockedUntil != nil && a.LockedUntil.After(now) {
		return StateLocked
	}
	return StateActive
}

// LockedNow reports whether a lock window is currently in force.
func (a *Account) LockedNow(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}
