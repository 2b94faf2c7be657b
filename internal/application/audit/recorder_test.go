package audit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Inventario-stock/internal/application/audit"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/internal/domain/repository"
	"github.com/jhoicas/Inventario-stock/pkg/logger"
)

type sink struct {
	events []*entity.AuditEvent
	err    error
	panic  bool
}

func (s *sink) Write(_ context.Context, ev *entity.AuditEvent) error {
	if s.panic {
		panic("boom")
	}
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

type repos struct {
	repository.Repositories
	audit *sink
}

func (r repos) Audit() repository.AuditRepository { return r.audit }

func TestRecord_AdjuntaMeta(t *testing.T) {
	s := &sink{}
	rec := audit.NewRecorder(logger.Nop())
	ctx := audit.WithMeta(context.Background(), audit.Meta{CorrelationID: "corr-1", IP: "10.0.0.1", UserAgent: "ua"})

	rec.Record(ctx, repos{audit: s}, entity.Actor{TenantID: "t1", UserID: "u1"},
		audit.Change{EntityType: entity.AuditEntityLot, EntityID: "lot-1", Action: "CREATE"},
		audit.Change{EntityType: entity.AuditEntityStock, EntityID: "b/p", Action: "UPDATE"},
	)

	require.Len(t, s.events, 2)
	assert.Equal(t, "corr-1", s.events[0].CorrelationID)
	assert.Equal(t, "10.0.0.1", s.events[0].IP)
	assert.Equal(t, "t1", s.events[1].TenantID)
	assert.Equal(t, "u1", s.events[1].ActorUserID)
	assert.NotEmpty(t, s.events[0].ID)
}

func TestRecord_FalloNoPropaga(t *testing.T) {
	rec := audit.NewRecorder(logger.Nop())
	assert.NotPanics(t, func() {
		rec.Record(context.Background(), repos{audit: &sink{err: errors.New("disk full")}}, entity.Actor{},
			audit.Change{EntityType: "X", Action: "Y"})
		rec.Record(context.Background(), repos{audit: &sink{panic: true}}, entity.Actor{},
			audit.Change{EntityType: "X", Action: "Y"})
	})
}
