package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo implementación del puerto ProductRepository sobre PostgreSQL (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de persistencia para productos. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

const productColumns = `id, tenant_id, sku, name, created_at, updated_at`

// GetByID obtiene un producto del tenant; nil si no existe.
func (r *ProductRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE tenant_id = $1 AND id = $2`
	var p entity.Product
	err := r.q.QueryRow(ctx, query, tenantID, id).Scan(
		&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// ListByIDs productos existentes del tenant entre los IDs dados.
func (r *ProductRepo) ListByIDs(ctx context.Context, tenantID string, ids []string) ([]*entity.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE tenant_id = $1 AND id = ANY($2)`
	rows, err := r.q.Query(ctx, query, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	var list []*entity.Product
	for rows.Next() {
		var p entity.Product
		if err := rows.Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}
