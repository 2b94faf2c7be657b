package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/internal/domain/repository"
)

var _ repository.AuditRepository = (*AuditRepo)(nil)

// AuditRepo escribe eventos de auditoría. Dentro de una tx usa un SAVEPOINT para que un fallo
// del insert no deje la transacción abortada.
type AuditRepo struct {
	q Querier
}

// NewAuditRepository construye el sumidero de auditoría.
func NewAuditRepository(q Querier) *AuditRepo {
	return &AuditRepo{q: q}
}

const insertAuditQuery = `
	INSERT INTO audit_events (id, tenant_id, actor_user_id, entity_type, entity_id, action,
		before_state, after_state, correlation_id, ip, user_agent, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// Write inserta el evento.
func (r *AuditRepo) Write(ctx context.Context, e *entity.AuditEvent) error {
	b, ok := r.q.(beginner)
	if !ok {
		return r.insert(ctx, r.q, e)
	}
	sp, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("audit savepoint: %w", err)
	}
	if err := r.insert(ctx, sp, e); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release audit savepoint: %w", err)
	}
	return nil
}

func (r *AuditRepo) insert(ctx context.Context, q Querier, e *entity.AuditEvent) error {
	_, err := q.Exec(ctx, insertAuditQuery,
		e.ID, e.TenantID, e.ActorUserID, e.EntityType, e.EntityID, e.Action,
		e.Before, e.After, nullIfEmpty(e.CorrelationID), nullIfEmpty(e.IP), nullIfEmpty(e.UserAgent),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
