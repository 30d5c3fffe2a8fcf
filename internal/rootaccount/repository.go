package rootaccount

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/VrushankPatel/shield-sub001/internal/platform/db"
	"github.com/VrushankPatel/shield-sub001/internal/shared"
)

// Repository persists the singleton root account. Update runs fn against a
// row-locked copy so concurrent logins serialize their counter updates.
type Repository interface {
	Find(ctx context.Context) (*Account, error)
	CreateIfAbsent(ctx context.Context, a Account) (*Account, error)
	Update(ctx context.Context, fn func(*Account) error) (*Account, error)
}

const accountColumns = `id, login_id, email, mobile, password_hash, email_verified, mobile_verified,
	active, password_change_required, failed_login_attempts, locked_until, last_login_at,
	token_version, created_at, updated_at`

// PGRepository stores the root account in Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.LoginID, &a.Email, &a.Mobile, &a.PasswordHash,
		&a.EmailVerified, &a.MobileVerified, &a.Active, &a.PasswordChangeRequired,
		&a.FailedLoginAttempts, &a.LockedUntil, &a.LastLoginAt, &a.TokenVersion,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("rootaccount: scan: %w", err)
	}
	return &a, nil
}

// Find loads the root account.
func (r *PGRepository) Find(ctx context.Context) (*Account, error) {
	q := `SELECT ` + accountColumns + ` FROM root_accounts WHERE login_id = $1`
	return scanAccount(r.pool.QueryRow(ctx, q, LoginID))
}

// CreateIfAbsent inserts the root account row if none exists and returns the
// live record either way. The unique index on login_id makes concurrent
// bootstrap attempts converge on one row.
func (r *PGRepository) CreateIfAbsent(ctx context.Context, a Account) (*Account, error) {
	const stmt = `
		INSERT INTO root_accounts
			(login_id, email, mobile, password_hash, email_verified, mobile_verified,
			 active, password_change_required, failed_login_attempts, token_version,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		ON CONFLICT (login_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, stmt,
		a.LoginID, a.Email, a.Mobile, a.PasswordHash, a.EmailVerified, a.MobileVerified,
		a.Active, a.PasswordChangeRequired, a.FailedLoginAttempts, a.TokenVersion)
	if err != nil {
		return nil, fmt.Errorf("rootaccount: create: %w", err)
	}
	return r.Find(ctx)
}

// Update applies fn to the row-locked account and persists the result. fn
// errors abort the transaction untouched. ReadCommitted keeps concurrent
// failed-login counters serializing on the row lock without aborts.
func (r *PGRepository) Update(ctx context.Context, fn func(*Account) error) (*Account, error) {
	var updated *Account
	err := db.WithTxIsolation(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		q := `SELECT ` + accountColumns + ` FROM root_accounts WHERE login_id = $1 FOR UPDATE`
		a, err := scanAccount(tx.QueryRow(ctx, q, LoginID))
		if err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
		const stmt = `
			UPDATE root_accounts SET
				email = $2, mobile = $3, password_hash = $4, email_verified = $5,
				mobile_verified = $6, active = $7, password_change_required = $8,
				failed_login_attempts = $9, locked_until = $10, last_login_at = $11,
				token_version = $12, updated_at = now()
			WHERE id = $1`
		if _, err := tx.Exec(ctx, stmt,
			a.ID, a.Email, a.Mobile, a.PasswordHash, a.EmailVerified, a.MobileVerified,
			a.Active, a.PasswordChangeRequired, a.FailedLoginAttempts, a.LockedUntil,
			a.LastLoginAt, a.TokenVersion); err != nil {
			return fmt.Errorf("rootaccount: update: %w", err)
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

var _ Repository = (*PGRepository)(nil)
