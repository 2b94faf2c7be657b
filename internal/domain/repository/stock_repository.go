package repository

import (
	"context"

	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
)

// StockRepository define el puerto para consultar/actualizar el agregado por sucursal+producto.
// Usado dentro de transacciones para garantizar consistencia con los lotes.
type StockRepository interface {
	// Get devuelve el agregado; si no existe devuelve uno en cero (creación perezosa).
	Get(ctx context.Context, tenantID, branchID, productID string) (*entity.ProductStock, error)
	// GetForUpdate igual que Get pero bloquea la fila (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, tenantID, branchID, productID string) (*entity.ProductStock, error)
	// AddOnHand suma delta a QtyOnHand (upsert) y devuelve el agregado resultante.
	AddOnHand(ctx context.Context, tenantID, branchID, productID string, delta int) (*entity.ProductStock, error)
}
