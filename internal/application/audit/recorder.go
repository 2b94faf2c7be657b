package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/internal/domain/repository"
	"github.com/jhoicas/Inventario-stock/pkg/logger"
)

// Meta datos de la petición que acompañan a cada registro de auditoría.
type Meta struct {
	CorrelationID string
	IP            string
	UserAgent     string
}

type metaKey struct{}

// WithMeta adjunta los datos de la petición al contexto (lo hace el middleware HTTP).
func WithMeta(ctx context.Context, m Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, m)
}

// MetaFrom devuelve los datos de la petición, vacíos si no hay.
func MetaFrom(ctx context.Context) Meta {
	m, _ := ctx.Value(metaKey{}).(Meta)
	return m
}

// Change un sub-cambio a auditar.
type Change struct {
	EntityType string
	EntityID   string
	Action     string
	Before     any
	After      any
}

// Recorder escribe auditoría best-effort dentro de la transacción del llamador:
// un fallo se registra en el log y se descarta, nunca revierte la operación de negocio.
type Recorder struct {
	log *logger.Logger
	now func() time.Time
}

// NewRecorder construye el recorder.
func NewRecorder(log *logger.Logger) *Recorder {
	return &Recorder{log: log.Component("audit"), now: time.Now}
}

// Record escribe un evento por cambio. Nunca devuelve error.
func (r *Recorder) Record(ctx context.Context, repos repository.Repositories, actor entity.Actor, changes ...Change) {
	meta := MetaFrom(ctx)
	for _, c := range changes {
		ev := &entity.AuditEvent{
			ID:            uuid.New().String(),
			TenantID:      actor.TenantID,
			ActorUserID:   actor.UserID,
			EntityType:    c.EntityType,
			EntityID:      c.EntityID,
			Action:        c.Action,
			Before:        c.Before,
			After:         c.After,
			CorrelationID: meta.CorrelationID,
			IP:            meta.IP,
			UserAgent:     meta.UserAgent,
			CreatedAt:     r.now(),
		}
		if err := r.write(ctx, repos, ev); err != nil {
			r.log.Warn().Err(err).
				Str("tenant_id", actor.TenantID).
				Str("entity_type", c.EntityType).
				Str("entity_id", c.EntityID).
				Str("action", c.Action).
				Msg("auditoría descartada")
		}
	}
}

func (r *Recorder) write(ctx context.Context, repos repository.Repositories, ev *entity.AuditEvent) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicError{p}
		}
	}()
	return repos.Audit().Write(ctx, ev)
}

type panicError struct{ v any }

func (p panicError) Error() string { return "audit sink panic" }
