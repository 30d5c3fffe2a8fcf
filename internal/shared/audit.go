package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEvent represents a record stored in audit_logs.
type AuditEvent struct {
	TenantID    int64
	ActorUserID int64
	Action      string
	Entity      string
	EntityID    string
	Meta        map[string]any
	At          time.Time
}

// AuditSink records security-relevant transitions. Implementations must not
// fail silently; callers decide whether a recording failure aborts the
// operation.
type AuditSink interface {
	Record(ctx context.Context, ev AuditEvent) error
}

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so audit rows can join
// the surrounding transaction when ordering must survive a rollback boundary.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	db DBTX
}

// NewAuditLogger returns an AuditLogger writing through the given pool.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{db: pool}
}

// NewTxAuditLogger returns an AuditLogger bound to an open transaction.
func NewTxAuditLogger(tx DBTX) *AuditLogger {
	return &AuditLogger{db: tx}
}

// Record persists the event.
func (l *AuditLogger) Record(ctx context.Context, ev AuditEvent) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if ev.Action == "" || ev.Entity == "" {
		return errors.New("audit event requires action and entity")
	}
	metaJSON, err := json.Marshal(ev.Meta)
	if err != nil {
		return err
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = l.db.Exec(ctx,
		`INSERT INTO audit_logs (tenant_id, actor_id, action, entity, entity_id, meta, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.TenantID, ev.ActorUserID, ev.Action, ev.Entity, ev.EntityID, metaJSON, at)
	return err
}

var _ AuditSink = (*AuditLogger)(nil)
