package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/VrushankPatel/shield-sub001/internal/shared"
)

// querier is the subset of pgxpool.Pool and pgx.Tx the repository needs, so
// creates can join a caller-managed transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository persists users in Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// PrimaryRoleCode returns the primary role code of an active tenant user.
func (r *PGRepository) PrimaryRoleCode(ctx context.Context, tenantID, userID int64) (string, error) {
	const q = `
		SELECT role_code FROM users
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`
	var code string
	if err := r.pool.QueryRow(ctx, q, tenantID, userID).Scan(&code); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("user %d: %w", userID, shared.ErrNotFound)
		}
		return "", fmt.Errorf("users: primary role: %w", err)
	}
	return code, nil
}

// FindByID loads one user within a tenant.
func (r *PGRepository) FindByID(ctx context.Context, tenantID, userID int64) (*User, error) {
	const q = `
		SELECT id, tenant_id, full_name, email, mobile, password_hash, role_code, status, created_at, updated_at
		FROM users
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`
	return r.scanUser(r.pool.QueryRow(ctx, q, tenantID, userID))
}

// FindByEmail loads one user within a tenant by lowercased email.
func (r *PGRepository) FindByEmail(ctx context.Context, tenantID int64, email string) (*User, error) {
	const q = `
		SELECT id, tenant_id, full_name, email, mobile, password_hash, role_code, status, created_at, updated_at
		FROM users
		WHERE tenant_id = $1 AND lower(email) = lower($2) AND deleted_at IS NULL`
	return r.scanUser(r.pool.QueryRow(ctx, q, tenantID, email))
}

// Create inserts a user through the pool.
func (r *PGRepository) Create(ctx context.Context, u User) (*User, error) {
	return insertUser(ctx, r.pool, u)
}

// CreateTx inserts a user inside a caller-managed transaction. Onboarding uses
// it so the tenant, its admin, and the audit rows commit together.
func (r *PGRepository) CreateTx(ctx context.Context, tx pgx.Tx, u User) (*User, error) {
	return insertUser(ctx, tx, u)
}

func insertUser(ctx context.Context, q querier, u User) (*User, error) {
	const stmt = `
		INSERT INTO users (tenant_id, full_name, email, mobile, password_hash, role_code, status, created_at, updated_at)
		VALUES ($1, $2, lower($3), $4, $5, $6, $7, now(), now())
		RETURNING id, created_at, updated_at`
	u.Email = strings.TrimSpace(u.Email)
	u.Mobile = strings.TrimSpace(u.Mobile)
	err := q.QueryRow(ctx, stmt,
		u.TenantID, u.FullName, u.Email, u.Mobile, u.PasswordHash, u.RoleCode, u.Status,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("email %s already registered: %w", u.Email, shared.ErrConflict)
		}
		return nil, fmt.Errorf("users: insert: %w", err)
	}
	return &u, nil
}

func (r *PGRepository) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.TenantID, &u.FullName, &u.Email, &u.Mobile, &u.PasswordHash, &u.RoleCode, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("users: scan: %w", err)
	}
	return &u, nil
}
