// Package rbac resolves tenant-scoped roles and permissions.
package rbac

import (
	"strings"
	"time"

	"github.com/VrushankPatel/shield-sub001/internal/shared"
)

// Role is a tenant-scoped permission grouping. System roles are seeded for
// every tenant and cannot be deleted.
type Role struct {
	ID          int64
	TenantID    int64
	Code        string
	Name        string
	Description string
	SystemRole  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission is an atomic tenant-scoped capability.
type Permission struct {
	ID          int64
	TenantID    int64
	Code        string
	ModuleName  string
	Description string
}

// AdditionalRole is a role granted to a user beyond their primary role.
type AdditionalRole struct {
	RoleID    int64
	Code      string
	GrantedBy int64
	GrantedAt time.Time
}

// EffectivePermissions is the result of resolving a user's full grant set.
// Roles keep insertion order (primary first, then grants in assignment
// order); Permissions are deduplicated and sorted lexicographically.
type EffectivePermissions struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// NormalizeRoleCode trims, uppercases, and maps spaces and hyphens to
// underscores.
func NormalizeRoleCode(code string) string {
	code = strings.TrimSpace(code)
	code = strings.ToUpper(code)
	code = strings.ReplaceAll(code, " ", "_")
	code = strings.ReplaceAll(code, "-", "_")
	return code
}

// permissionSeed describes one catalog entry seeded for every tenant.
type permissionSeed struct {
	Code        string
	ModuleName  string
	Description string
}

// defaultPermissions is the fixed permission catalog.
var defaultPermissions = []permissionSeed{
	{shared.PermUserRead, "users", "View society members"},
	{shared.PermUserWrite, "users", "Manage society members"},
	{shared.PermUnitRead, "units", "View units and flats"},
	{shared.PermUnitWrite, "units", "Manage units and flats"},
	{shared.PermAnnouncementRead, "announcements", "Read announcements"},
	{shared.PermAnnouncementManage, "announcements", "Publish and retire announcements"},
	{shared.PermVisitorManage, "visitors", "Check visitors in and out"},
	{shared.PermComplaintCreate, "helpdesk", "Raise complaints"},
	{shared.PermAssetManage, "assets", "Manage society assets"},
	{shared.PermAmenityBook, "amenities", "Book amenities"},
	{shared.PermAmenityManage, "amenities", "Manage amenity inventory"},
	{shared.PermBillingManage, "billing", "Manage bills and dues"},
	{shared.PermMeetingManage, "meetings", "Schedule and minute meetings"},
	{shared.PermDigitalIDVerify, "digitalid", "Verify resident digital IDs"},
}

// roleSeed describes one system role seeded for every tenant.
type roleSeed struct {
	Code string
	Name string
}

var defaultRoles = []roleSeed{
	{shared.RoleAdmin, "Administrator"},
	{shared.RoleCommittee, "Committee Member"},
	{shared.RoleResident, "Resident"},
	{shared.RoleSecurity, "Security"},
}

// defaultMatrix maps each system role to its seeded permissions. ADMIN gets
// the full catalog.
var defaultMatrix = map[string][]string{
	shared.RoleCommittee: {
		shared.PermUserRead,
		shared.PermUnitRead,
		shared.PermAnnouncementRead,
		shared.PermAnnouncementManage,
		shared.PermComplaintCreate,
		shared.PermAssetManage,
		shared.PermAmenityBook,
		shared.PermAmenityManage,
		shared.PermBillingManage,
		shared.PermMeetingManage,
	},
	shared.RoleResident: {
		shared.PermUnitRead,
		shared.PermAnnouncementRead,
		shared.PermComplaintCreate,
		shared.PermAmenityBook,
	},
	shared.RoleSecurity: {
		shared.PermAnnouncementRead,
		shared.PermVisitorManage,
		shared.PermDigitalIDVerify,
	},
}

func init() {
	full := make([]string, 0, len(defaultPermissions))
	for _, p := range defaultPermissions {
		full = append(full, p.Code)
	}
	defaultMatrix[shared.RoleAdmin] = full
}
