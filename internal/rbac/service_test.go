package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/VrushankPatel/shield-sub001/internal/shared"
)

type memoryRolePermission struct {
	roleID       int64
	permissionID int64
	deleted      bool
}

type memoryUserRole struct {
	userID    int64
	roleID    int64
	grantedBy int64
	grantedAt time.Time
	deleted   bool
}

type memoryRBACRepo struct {
	mu        sync.Mutex
	roles     []*Role
	rolesGone map[int64]bool
	perms     []*Permission
	permsGone map[int64]bool
	rolePerms []*memoryRolePermission
	userRoles []*memoryUserRole
	nextID    int64
	clock     time.Time
}

func newMemoryRBACRepo() *memoryRBACRepo {
	return &memoryRBACRepo{
		rolesGone: make(map[int64]bool),
		permsGone: make(map[int64]bool),
		clock:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *memoryRBACRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memoryRBACRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memoryRBACRepo) findActiveRole(tenantID int64, code string) *Role {
	for _, role := range r.roles {
		if role.TenantID == tenantID && !r.rolesGone[role.ID] && strings.EqualFold(role.Code, code) {
			return role
		}
	}
	return nil
}

func (r *memoryRBACRepo) EnsureRole(ctx context.Context, tenantID int64, code, name string, systemRole bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findActiveRole(tenantID, code) != nil {
		return nil
	}
	r.roles = append(r.roles, &Role{ID: r.id(), TenantID: tenantID, Code: code, Name: name, SystemRole: systemRole})
	return nil
}

func (r *memoryRBACRepo) EnsurePermission(ctx context.Context, tenantID int64, code, moduleName, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.perms {
		if p.TenantID == tenantID && !r.permsGone[p.ID] && p.Code == code {
			return nil
		}
	}
	r.perms = append(r.perms, &Permission{ID: r.id(), TenantID: tenantID, Code: code, ModuleName: moduleName, Description: description})
	return nil
}

func (r *memoryRBACRepo) EnsureRolePermission(ctx context.Context, tenantID int64, roleCode, permissionCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	role := r.findActiveRole(tenantID, roleCode)
	if role == nil {
		return nil
	}
	var perm *Permission
	for _, p := range r.perms {
		if p.TenantID == tenantID && !r.permsGone[p.ID] && p.Code == permissionCode {
			perm = p
			break
		}
	}
	if perm == nil {
		return nil
	}
	for _, rp := range r.rolePerms {
		if rp.roleID == role.ID && rp.permissionID == perm.ID && !rp.deleted {
			return nil
		}
	}
	r.rolePerms = append(r.rolePerms, &memoryRolePermission{roleID: role.ID, permissionID: perm.ID})
	return nil
}

func (r *memoryRBACRepo) GetRole(ctx context.Context, tenantID, roleID int64) (*Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, role := range r.roles {
		if role.TenantID == tenantID && role.ID == roleID && !r.rolesGone[role.ID] {
			copied := *role
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRBACRepo) FindRoleByCode(ctx context.Context, tenantID int64, code string) (*Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if role := r.findActiveRole(tenantID, code); role != nil {
		copied := *role
		return &copied, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRBACRepo) CreateRole(ctx context.Context, role Role) (*Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findActiveRole(role.TenantID, role.Code) != nil {
		return nil, shared.ErrConflict
	}
	role.ID = r.id()
	stored := role
	r.roles = append(r.roles, &stored)
	copied := stored
	return &copied, nil
}

func (r *memoryRBACRepo) UpdateRole(ctx context.Context, tenantID, roleID int64, name, description string) (*Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, role := range r.roles {
		if role.TenantID == tenantID && role.ID == roleID && !r.rolesGone[role.ID] {
			role.Name = name
			role.Description = description
			copied := *role
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRBACRepo) SoftDeleteRole(ctx context.Context, tenantID, roleID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, role := range r.roles {
		if role.TenantID == tenantID && role.ID == roleID && !r.rolesGone[role.ID] {
			r.rolesGone[role.ID] = true
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memoryRBACRepo) ActivePermissions(ctx context.Context, tenantID int64, ids []int64) ([]Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []Permission
	for _, p := range r.perms {
		if _, ok := want[p.ID]; ok && p.TenantID == tenantID && !r.permsGone[p.ID] {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memoryRBACRepo) PermissionCodesForRoles(ctx context.Context, roleIDs []int64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[int64]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		want[id] = struct{}{}
	}
	seen := make(map[string]struct{})
	for _, rp := range r.rolePerms {
		if rp.deleted {
			continue
		}
		if _, ok := want[rp.roleID]; !ok {
			continue
		}
		for _, p := range r.perms {
			if p.ID == rp.permissionID && !r.permsGone[p.ID] {
				seen[p.Code] = struct{}{}
			}
		}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

func (r *memoryRBACRepo) HasActiveRolePermission(ctx context.Context, roleID, permissionID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rp := range r.rolePerms {
		if rp.roleID == roleID && rp.permissionID == permissionID && !rp.deleted {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRBACRepo) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rp := range r.rolePerms {
		if rp.roleID == roleID && rp.permissionID == permissionID && !rp.deleted {
			return nil
		}
	}
	r.rolePerms = append(r.rolePerms, &memoryRolePermission{roleID: roleID, permissionID: permissionID})
	return nil
}

func (r *memoryRBACRepo) DetachPermission(ctx context.Context, roleID, permissionID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rp := range r.rolePerms {
		if rp.roleID == roleID && rp.permissionID == permissionID && !rp.deleted {
			rp.deleted = true
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRBACRepo) HasActiveUserRole(ctx context.Context, userID, roleID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ur := range r.userRoles {
		if ur.userID == userID && ur.roleID == roleID && !ur.deleted {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRBACRepo) AddUserRole(ctx context.Context, userID, roleID, grantedBy int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userRoles = append(r.userRoles, &memoryUserRole{userID: userID, roleID: roleID, grantedBy: grantedBy, grantedAt: r.tick()})
	return nil
}

func (r *memoryRBACRepo) RemoveUserRole(ctx context.Context, userID, roleID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ur := range r.userRoles {
		if ur.userID == userID && ur.roleID == roleID && !ur.deleted {
			ur.deleted = true
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRBACRepo) ActiveAdditionalRoles(ctx context.Context, userID int64) ([]AdditionalRole, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var grants []AdditionalRole
	for _, ur := range r.userRoles {
		if ur.userID != userID || ur.deleted {
			continue
		}
		for _, role := range r.roles {
			if role.ID == ur.roleID && !r.rolesGone[role.ID] {
				grants = append(grants, AdditionalRole{RoleID: role.ID, Code: role.Code, GrantedBy: ur.grantedBy, GrantedAt: ur.grantedAt})
			}
		}
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].GrantedAt.Before(grants[j].GrantedAt) })
	return grants, nil
}

var _ Repository = (*memoryRBACRepo)(nil)

type staticUserDirectory struct {
	primary map[int64]string
}

func (d staticUserDirectory) PrimaryRoleCode(ctx context.Context, tenantID, userID int64) (string, error) {
	code, ok := d.primary[userID]
	if !ok {
		return "", fmt.Errorf("user %d: %w", userID, shared.ErrNotFound)
	}
	return code, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []shared.AuditEvent
}

func (s *recordingSink) Record(ctx context.Context, ev shared.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Action
	}
	return out
}

func newTestService(primary map[int64]string) (*Service, *memoryRBACRepo, *recordingSink) {
	repo := newMemoryRBACRepo()
	sink := &recordingSink{}
	svc := NewService(repo, staticUserDirectory{primary: primary}, sink, nil, slog.Default())
	return svc, repo, sink
}

const testTenant = int64(100)

func TestSeedingIdempotence(t *testing.T) {
	svc, repo, _ := newTestService(nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.EnsureTenantDefaults(context.Background(), testTenant))
	}

	byCode := map[string]int{}
	for _, role := range repo.roles {
		if role.TenantID == testTenant {
			byCode[role.Code]++
			require.True(t, role.SystemRole)
		}
	}
	require.Equal(t, map[string]int{
		shared.RoleAdmin: 1, shared.RoleCommittee: 1, shared.RoleResident: 1, shared.RoleSecurity: 1,
	}, byCode)

	permCount := map[string]int{}
	for _, p := range repo.perms {
		if p.TenantID == testTenant {
			permCount[p.Code]++
		}
	}
	require.Len(t, permCount, len(defaultPermissions))
	for code, n := range permCount {
		require.Equal(t, 1, n, "duplicate permission %s", code)
	}
}

func TestAdminRoleGetsFullCatalog(t *testing.T) {
	svc, _, _ := newTestService(map[int64]string{1: shared.RoleAdmin})
	require.NoError(t, svc.EnsureTenantDefaults(context.Background(), testTenant))

	effective, err := svc.GetUserPermissions(context.Background(), testTenant, 1)
	require.NoError(t, err)
	require.Equal(t, []string{shared.RoleAdmin}, effective.Roles)
	require.Len(t, effective.Permissions, len(defaultPermissions))
	require.True(t, sort.StringsAreSorted(effective.Permissions))
}

func TestPermissionAlgebra(t *testing.T) {
	svc, repo, _ := newTestService(map[int64]string{7: shared.RoleResident})
	ctx := context.Background()
	require.NoError(t, svc.EnsureTenantDefaults(ctx, testTenant))

	security := repo.findActiveRole(testTenant, shared.RoleSecurity)
	committee := repo.findActiveRole(testTenant, shared.RoleCommittee)
	require.NoError(t, svc.AssignRoleToUser(ctx, testTenant, 1, 7, security.ID))
	require.NoError(t, svc.AssignRoleToUser(ctx, testTenant, 1, 7, committee.ID))

	effective, err := svc.GetUserPermissions(ctx, testTenant, 7)
	require.NoError(t, err)
	require.Equal(t, []string{shared.RoleResident, shared.RoleSecurity, shared.RoleCommittee}, effective.Roles)
	require.Contains(t, effective.Permissions, shared.PermVisitorManage)
	require.Contains(t, effective.Permissions, shared.PermBillingManage)
	require.Contains(t, effective.Permissions, shared.PermComplaintCreate)
	require.True(t, sort.StringsAreSorted(effective.Permissions))

	// Removing SECURITY drops only permissions unique to it.
	require.NoError(t, svc.RemoveRoleFromUser(ctx, testTenant, 1, 7, security.ID))
	effective, err = svc.GetUserPermissions(ctx, testTenant, 7)
	require.NoError(t, err)
	require.NotContains(t, effective.Permissions, shared.PermVisitorManage)
	require.NotContains(t, effective.Permissions, shared.PermDigitalIDVerify)
	require.Contains(t, effective.Permissions, shared.PermAnnouncementRead)
	require.Contains(t, effective.Permissions, shared.PermBillingManage)
}

func TestMissingPrimaryRoleContributesCodeOnly(t *testing.T) {
	svc, _, _ := newTestService(map[int64]string{3: "LEGACY_ROLE"})
	ctx := context.Background()
	require.NoError(t, svc.EnsureTenantDefaults(ctx, testTenant))

	effective, err := svc.GetUserPermissions(ctx, testTenant, 3)
	require.NoError(t, err)
	require.Equal(t, []string{"LEGACY_ROLE"}, effective.Roles)
	require.Empty(t, effective.Permissions)
}

func TestCreateRoleNormalizesAndConflicts(t *testing.T) {
	svc, _, sink := newTestService(nil)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, testTenant, 1, "  gate keeper ", "Gate Keeper", "watches the gate", false)
	require.NoError(t, err)
	require.Equal(t, "GATE_KEEPER", role.Code)
	require.Contains(t, sink.actions(), "rbac.role.created")

	_, err = svc.CreateRole(ctx, testTenant, 1, "gate-keeper", "Other", "", false)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestDeleteSystemRoleRefused(t *testing.T) {
	svc, repo, _ := newTestService(nil)
	ctx := context.Background()
	require.NoError(t, svc.EnsureTenantDefaults(ctx, testTenant))

	admin := repo.findActiveRole(testTenant, shared.RoleAdmin)
	err := svc.DeleteRole(ctx, testTenant, 1, admin.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	custom, err := svc.CreateRole(ctx, testTenant, 1, "AUDITOR", "Auditor", "", false)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteRole(ctx, testTenant, 1, custom.ID))
	err = svc.DeleteRole(ctx, testTenant, 1, custom.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAssignPermissionsIdempotentAndStrict(t *testing.T) {
	svc, repo, _ := newTestService(nil)
	ctx := context.Background()
	require.NoError(t, svc.EnsureTenantDefaults(ctx, testTenant))

	role, err := svc.CreateRole(ctx, testTenant, 1, "AUDITOR", "Auditor", "", false)
	require.NoError(t, err)

	var permID int64
	for _, p := range repo.perms {
		if p.TenantID == testTenant && p.Code == shared.PermBillingManage {
			permID = p.ID
		}
	}
	require.NotZero(t, permID)

	require.NoError(t, svc.AssignPermissions(ctx, testTenant, 1, role.ID, []int64{permID}))
	// Repeat silently skips existing pairs.
	require.NoError(t, svc.AssignPermissions(ctx, testTenant, 1, role.ID, []int64{permID}))

	count := 0
	for _, rp := range repo.rolePerms {
		if rp.roleID == role.ID && !rp.deleted {
			count++
		}
	}
	require.Equal(t, 1, count)

	err = svc.AssignPermissions(ctx, testTenant, 1, role.ID, []int64{permID, 999999})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRemovePermissionRequiresActiveMapping(t *testing.T) {
	svc, repo, _ := newTestService(nil)
	ctx := context.Background()
	require.NoError(t, svc.EnsureTenantDefaults(ctx, testTenant))

	role, err := svc.CreateRole(ctx, testTenant, 1, "AUDITOR", "Auditor", "", false)
	require.NoError(t, err)

	var permID int64
	for _, p := range repo.perms {
		if p.TenantID == testTenant && p.Code == shared.PermUnitRead {
			permID = p.ID
		}
	}
	err = svc.RemovePermission(ctx, testTenant, 1, role.ID, permID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	require.NoError(t, svc.AssignPermissions(ctx, testTenant, 1, role.ID, []int64{permID}))
	require.NoError(t, svc.RemovePermission(ctx, testTenant, 1, role.ID, permID))
	err = svc.RemovePermission(ctx, testTenant, 1, role.ID, permID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAssignRoleToUserConflicts(t *testing.T) {
	svc, repo, _ := newTestService(map[int64]string{7: shared.RoleResident})
	ctx := context.Background()
	require.NoError(t, svc.EnsureTenantDefaults(ctx, testTenant))

	resident := repo.findActiveRole(testTenant, shared.RoleResident)
	err := svc.AssignRoleToUser(ctx, testTenant, 1, 7, resident.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	security := repo.findActiveRole(testTenant, shared.RoleSecurity)
	require.NoError(t, svc.AssignRoleToUser(ctx, testTenant, 1, 7, security.ID))
	err = svc.AssignRoleToUser(ctx, testTenant, 1, 7, security.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	err = svc.RemoveRoleFromUser(ctx, testTenant, 1, 7, resident.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMutationsEmitAuditEvents(t *testing.T) {
	svc, repo, sink := newTestService(map[int64]string{7: shared.RoleResident})
	ctx := context.Background()
	require.NoError(t, svc.EnsureTenantDefaults(ctx, testTenant))

	role, err := svc.CreateRole(ctx, testTenant, 9, "AUDITOR", "Auditor", "", false)
	require.NoError(t, err)
	_, err = svc.UpdateRole(ctx, testTenant, 9, role.ID, "Auditor II", "")
	require.NoError(t, err)
	security := repo.findActiveRole(testTenant, shared.RoleSecurity)
	require.NoError(t, svc.AssignRoleToUser(ctx, testTenant, 9, 7, security.ID))

	require.Equal(t, []string{
		"rbac.role.created",
		"rbac.role.updated",
		"rbac.user.role_assigned",
	}, sink.actions())
	for _, ev := range sink.events {
		require.Equal(t, testTenant, ev.TenantID)
		require.Equal(t, int64(9), ev.ActorUserID)
	}
}
