package repository

import (
	"context"

	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
)

// TransferFilter filtros del listado de traslados.
type TransferFilter struct {
	TenantID  string
	Statuses  []entity.TransferStatus
	BranchID  string
	Direction string // "inbound", "outbound" o vacío (ambos) respecto de BranchID
	Cursor    string
	Limit     int
}

// Direcciones del filtro de traslados.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// StockTransferRepository puerto de persistencia de traslados con sus ítems.
type StockTransferRepository interface {
	// Create inserta traslado + ítems. Devuelve domain.ErrDuplicate si el número ya existe en el tenant.
	Create(ctx context.Context, t *entity.StockTransfer) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.StockTransfer, error)
	GetForUpdate(ctx context.Context, tenantID, id string) (*entity.StockTransfer, error)
	// Update persiste cabecera e ítems (cantidades, envíos, costos).
	Update(ctx context.Context, t *entity.StockTransfer) error
	// MaxTransferNumber número más alto del tenant con ese prefijo ("" si no hay).
	MaxTransferNumber(ctx context.Context, tenantID, prefix string) (string, error)
	List(ctx context.Context, f TransferFilter) ([]*entity.StockTransfer, error)
}
