package tenants

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/VrushankPatel/shield-sub001/internal/platform/db"
	"github.com/VrushankPatel/shield-sub001/internal/shared"
	"github.com/VrushankPatel/shield-sub001/internal/users"
)

// OnboardInput carries everything needed to provision a society and its first
// admin. AdminPasswordHash is already bcrypt-hashed by the caller.
type OnboardInput struct {
	SocietyName       string
	Address           string
	AdminFullName     string
	AdminEmail        string
	AdminMobile       string
	AdminPasswordHash string
	ActorID           int64
}

// OnboardResult reports the provisioned identifiers.
type OnboardResult struct {
	TenantID    int64  `json:"tenant_id"`
	AdminUserID int64  `json:"admin_user_id"`
	AdminEmail  string `json:"admin_email"`
}

// Provisioner creates a tenant together with its admin user and the audit
// trail in one transaction.
type Provisioner struct {
	pool  *pgxpool.Pool
	users *users.PGRepository
}

// NewProvisioner constructs a Provisioner.
func NewProvisioner(pool *pgxpool.Pool, userRepo *users.PGRepository) *Provisioner {
	return &Provisioner{pool: pool, users: userRepo}
}

// Onboard inserts the tenant, its admin user, and four ordered audit events.
// The whole sequence commits or rolls back as a unit, so a cancelled request
// leaves no partial society behind.
func (p *Provisioner) Onboard(ctx context.Context, in OnboardInput) (*OnboardResult, error) {
	var result OnboardResult
	err := db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		audit := shared.NewTxAuditLogger(tx)

		if err := audit.Record(ctx, shared.AuditEvent{
			ActorUserID: in.ActorID,
			Action:      "root.onboarding.started",
			Entity:      "tenant",
			EntityID:    strings.TrimSpace(in.SocietyName),
		}); err != nil {
			return err
		}

		tenant, err := insertTenant(ctx, tx, in.SocietyName, in.Address)
		if err != nil {
			return err
		}
		if err := audit.Record(ctx, shared.AuditEvent{
			TenantID:    tenant.ID,
			ActorUserID: in.ActorID,
			Action:      "root.onboarding.society_created",
			Entity:      "tenant",
			EntityID:    strconv.FormatInt(tenant.ID, 10),
		}); err != nil {
			return err
		}

		admin, err := p.users.CreateTx(ctx, tx, users.User{
			TenantID:     tenant.ID,
			FullName:     strings.TrimSpace(in.AdminFullName),
			Email:        in.AdminEmail,
			Mobile:       in.AdminMobile,
			PasswordHash: in.AdminPasswordHash,
			RoleCode:     shared.RoleAdmin,
			Status:       users.StatusActive,
		})
		if err != nil {
			return err
		}
		if err := audit.Record(ctx, shared.AuditEvent{
			TenantID:    tenant.ID,
			ActorUserID: in.ActorID,
			Action:      "root.onboarding.admin_created",
			Entity:      "user",
			EntityID:    strconv.FormatInt(admin.ID, 10),
		}); err != nil {
			return err
		}

		if err := audit.Record(ctx, shared.AuditEvent{
			TenantID:    tenant.ID,
			ActorUserID: in.ActorID,
			Action:      "root.onboarding.completed",
			Entity:      "tenant",
			EntityID:    strconv.FormatInt(tenant.ID, 10),
		}); err != nil {
			return err
		}

		result = OnboardResult{TenantID: tenant.ID, AdminUserID: admin.ID, AdminEmail: admin.Email}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// rowQuerier is the slice of pgx.Tx the tenant insert needs.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertTenant(ctx context.Context, q rowQuerier, name, address string) (*Tenant, error) {
	const stmt = `
		INSERT INTO tenants (name, address, status, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING id, created_at, updated_at`
	t := Tenant{
		Name:    strings.TrimSpace(name),
		Address: strings.TrimSpace(address),
		Status:  StatusActive,
	}
	if t.Name == "" {
		return nil, fmt.Errorf("society name required: %w", shared.ErrValidation)
	}
	err := q.QueryRow(ctx, stmt, t.Name, t.Address, t.Status).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("society %s already exists: %w", t.Name, shared.ErrConflict)
		}
		return nil, fmt.Errorf("tenants: insert: %w", err)
	}
	return &t, nil
}
