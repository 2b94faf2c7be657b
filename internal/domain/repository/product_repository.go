package repository

import (
	"context"

	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
)

// ProductRepository puerto de lectura de productos del tenant.
type ProductRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (*entity.Product, error)
	// ListByIDs devuelve los productos existentes del tenant entre los IDs pedidos.
	ListByIDs(ctx context.Context, tenantID string, ids []string) ([]*entity.Product, error)
}
