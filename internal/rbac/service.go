package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/VrushankPatel/shield-sub001/internal/shared"
)

// UserDirectory resolves a user's primary role code. The users package
// implements it; rbac only needs this one view.
type UserDirectory interface {
	PrimaryRoleCode(ctx context.Context, tenantID, userID int64) (string, error)
}

// Service is the RBAC engine: default seeding, role/permission management,
// and effective-permission resolution.
type Service struct {
	repo   Repository
	users  UserDirectory
	audit  shared.AuditSink
	cache  *Cache
	logger *slog.Logger
	seeds  singleflight.Group
	seeded sync.Map
}

// NewService constructs the engine. cache may be nil to disable memoization.
func NewService(repo Repository, users UserDirectory, audit shared.AuditSink, cache *Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, users: users, audit: audit, cache: cache, logger: logger}
}

// EnsureTenantDefaults reconciles the tenant's system roles, permission
// catalog, and default role-permission matrix. Idempotent: every insert is
// unique-constraint-backed insert-if-absent, so concurrent first-touches of
// the same tenant converge without duplicates. Singleflight collapses
// concurrent in-process calls per tenant.
func (s *Service) EnsureTenantDefaults(ctx context.Context, tenantID int64) error {
	_, err, _ := s.seeds.Do(strconv.FormatInt(tenantID, 10), func() (any, error) {
		for _, role := range defaultRoles {
			if err := s.repo.EnsureRole(ctx, tenantID, role.Code, role.Name, true); err != nil {
				return nil, fmt.Errorf("rbac: seed role %s: %w", role.Code, err)
			}
		}
		for _, perm := range defaultPermissions {
			if err := s.repo.EnsurePermission(ctx, tenantID, perm.Code, perm.ModuleName, perm.Description); err != nil {
				return nil, fmt.Errorf("rbac: seed permission %s: %w", perm.Code, err)
			}
		}
		for roleCode, permCodes := range defaultMatrix {
			for _, permCode := range permCodes {
				if err := s.repo.EnsureRolePermission(ctx, tenantID, roleCode, permCode); err != nil {
					return nil, fmt.Errorf("rbac: seed mapping %s->%s: %w", roleCode, permCode, err)
				}
			}
		}
		return nil, nil
	})
	return err
}

// ensureSeeded reconciles defaults on the first RBAC access per tenant in
// this process. Reconciliation itself is idempotent, so the in-process mark
// is only an optimisation.
func (s *Service) ensureSeeded(ctx context.Context, tenantID int64) error {
	if _, ok := s.seeded.Load(tenantID); ok {
		return nil
	}
	if err := s.EnsureTenantDefaults(ctx, tenantID); err != nil {
		return err
	}
	s.seeded.Store(tenantID, struct{}{})
	return nil
}

// CreateRole adds a tenant role with a normalized, unique code.
func (s *Service) CreateRole(ctx context.Context, tenantID, actorID int64, code, name, description string, systemRole bool) (*Role, error) {
	normalized := NormalizeRoleCode(code)
	if normalized == "" {
		return nil, fmt.Errorf("role code required: %w", shared.ErrValidation)
	}
	if err := s.ensureSeeded(ctx, tenantID); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindRoleByCode(ctx, tenantID, normalized); err == nil {
		return nil, fmt.Errorf("role code %s already exists: %w", normalized, shared.ErrConflict)
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	role, err := s.repo.CreateRole(ctx, Role{
		TenantID:    tenantID,
		Code:        normalized,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		SystemRole:  systemRole,
	})
	if err != nil {
		return nil, err
	}

	if err := s.recordAudit(ctx, tenantID, actorID, "rbac.role.created", "role", role.ID); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, tenantID)
	return role, nil
}

// UpdateRole mutates name and description only.
func (s *Service) UpdateRole(ctx context.Context, tenantID, actorID, roleID int64, name, description string) (*Role, error) {
	role, err := s.repo.UpdateRole(ctx, tenantID, roleID, strings.TrimSpace(name), strings.TrimSpace(description))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("role %d: %w", roleID, shared.ErrNotFound)
		}
		return nil, err
	}
	if err := s.recordAudit(ctx, tenantID, actorID, "rbac.role.updated", "role", role.ID); err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole soft-deletes a role. System roles refuse deletion.
func (s *Service) DeleteRole(ctx context.Context, tenantID, actorID, roleID int64) error {
	role, err := s.repo.GetRole(ctx, tenantID, roleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("role %d: %w", roleID, shared.ErrNotFound)
		}
		return err
	}
	if role.SystemRole {
		return fmt.Errorf("system role %s cannot be deleted: %w", role.Code, shared.ErrConflict)
	}
	if err := s.repo.SoftDeleteRole(ctx, tenantID, roleID); err != nil {
		return err
	}
	if err := s.recordAudit(ctx, tenantID, actorID, "rbac.role.deleted", "role", roleID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, tenantID)
	return nil
}

// AssignPermissions attaches permissions to a role. Pairs already mapped are
// silently skipped; any id that does not resolve to an active permission of
// the tenant fails the whole call.
func (s *Service) AssignPermissions(ctx context.Context, tenantID, actorID, roleID int64, permissionIDs []int64) error {
	role, err := s.repo.GetRole(ctx, tenantID, roleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("role %d: %w", roleID, shared.ErrNotFound)
		}
		return err
	}

	perms, err := s.repo.ActivePermissions(ctx, tenantID, permissionIDs)
	if err != nil {
		return err
	}
	resolved := make(map[int64]struct{}, len(perms))
	for _, p := range perms {
		resolved[p.ID] = struct{}{}
	}
	for _, id := range permissionIDs {
		if _, ok := resolved[id]; !ok {
			return fmt.Errorf("permission %d: %w", id, shared.ErrNotFound)
		}
	}

	for _, id := range permissionIDs {
		mapped, err := s.repo.HasActiveRolePermission(ctx, role.ID, id)
		if err != nil {
			return err
		}
		if mapped {
			continue
		}
		if err := s.repo.AttachPermission(ctx, role.ID, id); err != nil {
			return err
		}
	}

	if err := s.recordAudit(ctx, tenantID, actorID, "rbac.role.permissions_assigned", "role", role.ID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, tenantID)
	return nil
}

// RemovePermission soft-deletes one role-permission mapping.
func (s *Service) RemovePermission(ctx context.Context, tenantID, actorID, roleID, permissionID int64) error {
	removed, err := s.repo.DetachPermission(ctx, roleID, permissionID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("mapping role %d permission %d: %w", roleID, permissionID, shared.ErrNotFound)
	}
	if err := s.recordAudit(ctx, tenantID, actorID, "rbac.role.permission_removed", "role", roleID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, tenantID)
	return nil
}

// AssignRoleToUser grants an additional role. Granting the user's own primary
// role, or a role already granted, is a conflict.
func (s *Service) AssignRoleToUser(ctx context.Context, tenantID, actorID, userID, roleID int64) error {
	role, err := s.repo.GetRole(ctx, tenantID, roleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("role %d: %w", roleID, shared.ErrNotFound)
		}
		return err
	}

	primary, err := s.users.PrimaryRoleCode(ctx, tenantID, userID)
	if err != nil {
		return err
	}
	if strings.EqualFold(primary, role.Code) {
		return fmt.Errorf("role %s is already the user's primary role: %w", role.Code, shared.ErrConflict)
	}

	granted, err := s.repo.HasActiveUserRole(ctx, userID, roleID)
	if err != nil {
		return err
	}
	if granted {
		return fmt.Errorf("role %s already granted: %w", role.Code, shared.ErrConflict)
	}

	if err := s.repo.AddUserRole(ctx, userID, roleID, actorID); err != nil {
		return err
	}
	if err := s.recordAudit(ctx, tenantID, actorID, "rbac.user.role_assigned", "user_role", userID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, tenantID)
	return nil
}

// RemoveRoleFromUser revokes an additional role grant.
func (s *Service) RemoveRoleFromUser(ctx context.Context, tenantID, actorID, userID, roleID int64) error {
	removed, err := s.repo.RemoveUserRole(ctx, userID, roleID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("grant user %d role %d: %w", userID, roleID, shared.ErrNotFound)
	}
	if err := s.recordAudit(ctx, tenantID, actorID, "rbac.user.role_removed", "user_role", userID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, tenantID)
	return nil
}

// GetUserPermissions resolves the user's effective grant set. The primary
// role is matched by case-insensitive code; when no such role row exists the
// primary code still appears in Roles but contributes no permissions. This
// soft linkage tolerates role renames at the cost of silently dropping
// permissions for dangling codes.
func (s *Service) GetUserPermissions(ctx context.Context, tenantID, userID int64) (EffectivePermissions, error) {
	if err := s.ensureSeeded(ctx, tenantID); err != nil {
		return EffectivePermissions{}, err
	}
	return s.cache.Fetch(ctx, tenantID, userID, func(ctx context.Context) (EffectivePermissions, error) {
		return s.resolvePermissions(ctx, tenantID, userID)
	})
}

func (s *Service) resolvePermissions(ctx context.Context, tenantID, userID int64) (EffectivePermissions, error) {
	primary, err := s.users.PrimaryRoleCode(ctx, tenantID, userID)
	if err != nil {
		return EffectivePermissions{}, err
	}

	roleCodes := []string{primary}
	seen := map[string]struct{}{strings.ToUpper(primary): {}}
	var roleIDs []int64

	if role, err := s.repo.FindRoleByCode(ctx, tenantID, primary); err == nil {
		roleIDs = append(roleIDs, role.ID)
	} else if !errors.Is(err, shared.ErrNotFound) {
		return EffectivePermissions{}, err
	}

	grants, err := s.repo.ActiveAdditionalRoles(ctx, userID)
	if err != nil {
		return EffectivePermissions{}, err
	}
	for _, g := range grants {
		if _, dup := seen[strings.ToUpper(g.Code)]; !dup {
			roleCodes = append(roleCodes, g.Code)
			seen[strings.ToUpper(g.Code)] = struct{}{}
		}
		roleIDs = append(roleIDs, g.RoleID)
	}

	permCodes, err := s.repo.PermissionCodesForRoles(ctx, roleIDs)
	if err != nil {
		return EffectivePermissions{}, err
	}

	return EffectivePermissions{Roles: roleCodes, Permissions: permCodes}, nil
}

func (s *Service) recordAudit(ctx context.Context, tenantID, actorID int64, action, entity string, entityID int64) error {
	return s.audit.Record(ctx, shared.AuditEvent{
		TenantID:    tenantID,
		ActorUserID: actorID,
		Action:      action,
		Entity:      entity,
		EntityID:    strconv.FormatInt(entityID, 10),
	})
}
