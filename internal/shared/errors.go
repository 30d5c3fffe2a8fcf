package shared

import "errors"

var (
	// ErrNotFound indicates a referenced id does not resolve to a live record.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates an invariant violation such as a duplicate assignment.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates malformed or contradictory input.
	ErrValidation = errors.New("validation failed")
	// ErrAuth indicates bad credentials, an invalid token, or a stale session.
	ErrAuth = errors.New("authentication failed")
	// ErrLocked indicates the account is temporarily locked out.
	ErrLocked = errors.New("account locked")
	// ErrPermissionDenied indicates the actor lacks a required permission.
	ErrPermissionDenied = errors.New("permission denied")
)
