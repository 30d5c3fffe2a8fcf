package shared

import (
	"fmt"
	"strings"
)

// Permission codes seeded for every tenant.
const (
	PermUserRead           = "USER_READ"
	PermUserWrite          = "USER_WRITE"
	PermUnitRead           = "UNIT_READ"
	PermUnitWrite          = "UNIT_WRITE"
	PermAnnouncementRead   = "ANNOUNCEMENT_READ"
	PermAnnouncementManage = "ANNOUNCEMENT_MANAGE"
	PermVisitorManage      = "VISITOR_MANAGE"
	PermComplaintCreate    = "COMPLAINT_CREATE"
	PermAssetManage        = "ASSET_MANAGE"
	PermAmenityBook        = "AMENITY_BOOK"
	PermAmenityManage      = "AMENITY_MANAGE"
	PermBillingManage      = "BILLING_MANAGE"
	PermMeetingManage      = "MEETING_MANAGE"
	PermDigitalIDVerify    = "DIGITAL_ID_VERIFY"
)

// Primary role codes. One system role per code is seeded for every tenant.
const (
	RoleAdmin     = "ADMIN"
	RoleCommittee = "COMMITTEE"
	RoleResident  = "RESIDENT"
	RoleSecurity  = "SECURITY"
)

// Authorize checks the required permission against an effective-permission
// set. It is an explicit function on plain values; route guards call it with
// the set resolved for the current principal.
func Authorize(granted []string, required string) error {
	required = strings.TrimSpace(required)
	if required == "" {
		return nil
	}
	for _, g := range granted {
		if strings.EqualFold(g, required) {
			return nil
		}
	}
	return fmt.Errorf("missing permission %s: %w", required, ErrPermissionDenied)
}
