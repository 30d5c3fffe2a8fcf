package shared

// PrincipalType distinguishes tenant users from the privileged root account.
type PrincipalType string

const (
	// PrincipalTenantUser is a regular user scoped to a tenant.
	PrincipalTenantUser PrincipalType = "TENANT_USER"
	// PrincipalRoot is the singleton privileged account.
	PrincipalRoot PrincipalType = "ROOT"
)

// Principal is the authenticated identity for one request. It is derived from
// a verified token and never persisted.
type Principal struct {
	UserID   int64
	TenantID int64 // zero for root
	Login    string
	RoleCode string
	Type     PrincipalType
	// TokenVersion is only meaningful for root principals.
	TokenVersion int64
}

// IsRoot reports whether the principal is the privileged root account.
func (p *Principal) IsRoot() bool {
	return p != nil && p.Type == PrincipalRoot
}
