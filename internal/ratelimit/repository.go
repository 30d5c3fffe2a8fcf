package ratelimit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// IncrementBucket upserts the bucket row and increments its counter in one
// statement, so there is no read-modify-write gap.
func (r *PGRepository) IncrementBucket(ctx context.Context, route, clientIP string, windowStart time.Time) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO rate_limit_buckets (route, client_ip, window_start, count)
		 VALUES ($1, $2, $3, 1)
		 ON CONFLICT (route, client_ip, window_start)
		 DO UPDATE SET count = rate_limit_buckets.count + 1
		 RETURNING count`,
		route, clientIP, windowStart).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// PurgeBefore deletes buckets whose window started before the horizon.
func (r *PGRepository) PurgeBefore(ctx context.Context, horizon time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM rate_limit_buckets WHERE window_start < $1`, horizon)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
