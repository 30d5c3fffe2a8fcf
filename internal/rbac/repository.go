package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/VrushankPatel/shield-sub001/internal/shared"
)

// Repository defines persistence for roles, permissions, and their mappings.
// "Active" always means deleted_at IS NULL; uniqueness constraints apply
// among active rows only (partial unique indexes).
type Repository interface {
	EnsureRole(ctx context.Context, tenantID int64, code, name string, systemRole bool) error
	EnsurePermission(ctx context.Context, tenantID int64, code, moduleName, description string) error
	EnsureRolePermission(ctx context.Context, tenantID int64, roleCode, permissionCode string) error

	GetRole(ctx context.Context, tenantID, roleID int64) (*Role, error)
	FindRoleByCode(ctx context.Context, tenantID int64, code string) (*Role, error)
	CreateRole(ctx context.Context, role Role) (*Role, error)
	UpdateRole(ctx context.Context, tenantID, roleID int64, name, description string) (*Role, error)
	SoftDeleteRole(ctx context.Context, tenantID, roleID int64) error

	ActivePermissions(ctx context.Context, tenantID int64, ids []int64) ([]Permission, error)
	PermissionCodesForRoles(ctx context.Context, roleIDs []int64) ([]string, error)
	HasActiveRolePermission(ctx context.Context, roleID, permissionID int64) (bool, error)
	AttachPermission(ctx context.Context, roleID, permissionID int64) error
	DetachPermission(ctx context.Context, roleID, permissionID int64) (bool, error)

	HasActiveUserRole(ctx context.Context, userID, roleID int64) (bool, error)
	AddUserRole(ctx context.Context, userID, roleID, grantedBy int64) error
	RemoveUserRole(ctx context.Context, userID, roleID int64) (bool, error)
	ActiveAdditionalRoles(ctx context.Context, userID int64) ([]AdditionalRole, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const roleColumns = `id, tenant_id, code, name, description, system_role, created_at, updated_at`

func scanRole(row pgx.Row) (*Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.TenantID, &r.Code, &r.Name, &r.Description, &r.SystemRole, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// EnsureRole inserts the role when no active row with the code exists. The
// partial unique index makes concurrent first-touches converge on one row.
func (r *PGRepository) EnsureRole(ctx context.Context, tenantID int64, code, name string, systemRole bool) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO roles (tenant_id, code, name, description, system_role)
		 VALUES ($1, $2, $3, '', $4)
		 ON CONFLICT (tenant_id, code) WHERE deleted_at IS NULL DO NOTHING`,
		tenantID, code, name, systemRole)
	return err
}

// EnsurePermission inserts the permission when absent.
func (r *PGRepository) EnsurePermission(ctx context.Context, tenantID int64, code, moduleName, description string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO permissions (tenant_id, code, module_name, description)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id, code) WHERE deleted_at IS NULL DO NOTHING`,
		tenantID, code, moduleName, description)
	return err
}

// EnsureRolePermission maps role to permission by code when both resolve and
// no active mapping exists.
func (r *PGRepository) EnsureRolePermission(ctx context.Context, tenantID int64, roleCode, permissionCode string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id)
		 SELECT ro.id, pe.id
		 FROM roles ro, permissions pe
		 WHERE ro.tenant_id = $1 AND upper(ro.code) = upper($2) AND ro.deleted_at IS NULL
		   AND pe.tenant_id = $1 AND pe.code = $3 AND pe.deleted_at IS NULL
		 ON CONFLICT (role_id, permission_id) WHERE deleted_at IS NULL DO NOTHING`,
		tenantID, roleCode, permissionCode)
	return err
}

// GetRole fetches an active role by id within the tenant.
func (r *PGRepository) GetRole(ctx context.Context, tenantID, roleID int64) (*Role, error) {
	return scanRole(r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles
		 WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`,
		tenantID, roleID))
}

// FindRoleByCode fetches an active role by case-insensitive code.
func (r *PGRepository) FindRoleByCode(ctx context.Context, tenantID int64, code string) (*Role, error) {
	return scanRole(r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles
		 WHERE tenant_id = $1 AND upper(code) = upper($2) AND deleted_at IS NULL`,
		tenantID, code))
}

// CreateRole inserts a new role; a racing duplicate surfaces as ErrConflict.
func (r *PGRepository) CreateRole(ctx context.Context, role Role) (*Role, error) {
	created, err := scanRole(r.pool.QueryRow(ctx,
		`INSERT INTO roles (tenant_id, code, name, description, system_role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+roleColumns,
		role.TenantID, role.Code, role.Name, role.Description, role.SystemRole))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, shared.ErrConflict
		}
		return nil, err
	}
	return created, nil
}

// UpdateRole mutates the mutable fields of an active role.
func (r *PGRepository) UpdateRole(ctx context.Context, tenantID, roleID int64, name, description string) (*Role, error) {
	return scanRole(r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $3, description = $4, updated_at = NOW()
		 WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
		 RETURNING `+roleColumns,
		tenantID, roleID, name, description))
}

// SoftDeleteRole marks the role deleted.
func (r *PGRepository) SoftDeleteRole(ctx context.Context, tenantID, roleID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE roles SET deleted_at = NOW(), updated_at = NOW()
		 WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`,
		tenantID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ActivePermissions resolves the given ids to active permissions of the
// tenant; missing ids are simply absent from the result.
func (r *PGRepository) ActivePermissions(ctx context.Context, tenantID int64, ids []int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, code, module_name, description FROM permissions
		 WHERE tenant_id = $1 AND id = ANY($2) AND deleted_at IS NULL`,
		tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Code, &p.ModuleName, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// PermissionCodesForRoles returns the distinct active permission codes
// reachable from the given roles, sorted lexicographically.
func (r *PGRepository) PermissionCodesForRoles(ctx context.Context, roleIDs []int64) ([]string, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT pe.code
		 FROM role_permissions rp
		 JOIN permissions pe ON pe.id = rp.permission_id AND pe.deleted_at IS NULL
		 WHERE rp.role_id = ANY($1) AND rp.deleted_at IS NULL
		 ORDER BY pe.code`,
		roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// HasActiveRolePermission reports whether an active mapping exists.
func (r *PGRepository) HasActiveRolePermission(ctx context.Context, roleID, permissionID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM role_permissions
		   WHERE role_id = $1 AND permission_id = $2 AND deleted_at IS NULL
		 )`, roleID, permissionID).Scan(&exists)
	return exists, err
}

// AttachPermission creates an active mapping, tolerating concurrent inserts.
func (r *PGRepository) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id)
		 VALUES ($1, $2)
		 ON CONFLICT (role_id, permission_id) WHERE deleted_at IS NULL DO NOTHING`,
		roleID, permissionID)
	return err
}

// DetachPermission soft-deletes the mapping, reporting whether one existed.
func (r *PGRepository) DetachPermission(ctx context.Context, roleID, permissionID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE role_permissions SET deleted_at = NOW()
		 WHERE role_id = $1 AND permission_id = $2 AND deleted_at IS NULL`,
		roleID, permissionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// HasActiveUserRole reports whether an active user-role grant exists.
func (r *PGRepository) HasActiveUserRole(ctx context.Context, userID, roleID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM user_additional_roles
		   WHERE user_id = $1 AND role_id = $2 AND deleted_at IS NULL
		 )`, userID, roleID).Scan(&exists)
	return exists, err
}

// AddUserRole grants an additional role to the user.
func (r *PGRepository) AddUserRole(ctx context.Context, userID, roleID, grantedBy int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_additional_roles (user_id, role_id, granted_by, granted_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (user_id, role_id) WHERE deleted_at IS NULL DO NOTHING`,
		userID, roleID, grantedBy)
	return err
}

// RemoveUserRole soft-deletes the grant, reporting whether one existed.
func (r *PGRepository) RemoveUserRole(ctx context.Context, userID, roleID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE user_additional_roles SET deleted_at = NOW()
		 WHERE user_id = $1 AND role_id = $2 AND deleted_at IS NULL`,
		userID, roleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ActiveAdditionalRoles lists the user's active grants whose target role is
// itself active, in assignment order.
func (r *PGRepository) ActiveAdditionalRoles(ctx context.Context, userID int64) ([]AdditionalRole, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT uar.role_id, ro.code, uar.granted_by, uar.granted_at
		 FROM user_additional_roles uar
		 JOIN roles ro ON ro.id = uar.role_id AND ro.deleted_at IS NULL
		 WHERE uar.user_id = $1 AND uar.deleted_at IS NULL
		 ORDER BY uar.granted_at, uar.role_id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []AdditionalRole
	for rows.Next() {
		var g AdditionalRole
		if err := rows.Scan(&g.RoleID, &g.Code, &g.GrantedBy, &g.GrantedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
