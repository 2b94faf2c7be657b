package repository

import (
	"context"

	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
)

// AuditRepository sumidero de auditoría. Dentro de una transacción, un fallo no debe abortarla.
type AuditRepository interface {
	Write(ctx context.Context, event *entity.AuditEvent) error
}
