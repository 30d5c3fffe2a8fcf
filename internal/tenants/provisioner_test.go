package tenants

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/VrushankPatel/shield-sub001/internal/shared"
)

type stubRow struct {
	id  int64
	err error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	now := time.Now()
	*(dest[0].(*int64)) = r.id
	*(dest[1].(*time.Time)) = now
	*(dest[2].(*time.Time)) = now
	return nil
}

type stubQuerier struct {
	sql  string
	args []any
	row  stubRow
}

func (q *stubQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.sql = sql
	q.args = args
	return q.row
}

func TestInsertTenantBindsNameAddressStatus(t *testing.T) {
	q := &stubQuerier{row: stubRow{id: 7}}

	tenant, err := insertTenant(context.Background(), q, "  Sunrise Heights ", " 12 Lake Road ")
	require.NoError(t, err)

	require.Equal(t, []any{"Sunrise Heights", "12 Lake Road", StatusActive}, q.args)
	require.Equal(t, int64(7), tenant.ID)
	require.Equal(t, "Sunrise Heights", tenant.Name)
	require.Equal(t, "12 Lake Road", tenant.Address)
	require.Equal(t, StatusActive, tenant.Status)
}

func TestInsertTenantRequiresName(t *testing.T) {
	q := &stubQuerier{}

	_, err := insertTenant(context.Background(), q, "   ", "12 Lake Road")
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, q.sql)
}

func TestInsertTenantDuplicateName(t *testing.T) {
	q := &stubQuerier{row: stubRow{err: &pgconn.PgError{Code: "23505"}}}

	_, err := insertTenant(context.Background(), q, "Sunrise Heights", "12 Lake Road")
	require.ErrorIs(t, err, shared.ErrConflict)
}
