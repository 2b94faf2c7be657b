package repository

import (
	"context"

	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
)

// StockLotRepository puerto de persistencia de lotes.
type StockLotRepository interface {
	Create(ctx context.Context, lot *entity.StockLot) error
	// ListOpen lotes con QtyRemaining > 0 en orden FIFO (ReceivedAt, CreatedAt, ID).
	ListOpen(ctx context.Context, tenantID, branchID, productID string) ([]*entity.StockLot, error)
	// ListOpenForUpdate como ListOpen bloqueando las filas.
	ListOpenForUpdate(ctx context.Context, tenantID, branchID, productID string) ([]*entity.StockLot, error)
	// GetByIDs lotes de la sucursal con esos IDs, sin bloquear; los que no pertenecen se omiten.
	GetByIDs(ctx context.Context, tenantID, branchID string, ids []string) ([]*entity.StockLot, error)
	// GetByIDsForUpdate como GetByIDs bloqueando las filas.
	GetByIDsForUpdate(ctx context.Context, tenantID, branchID string, ids []string) ([]*entity.StockLot, error)
	// AddRemaining suma delta (negativo al consumir) a QtyRemaining.
	AddRemaining(ctx context.Context, lotID string, delta int) error
}
