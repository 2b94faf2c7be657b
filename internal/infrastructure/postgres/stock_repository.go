package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/Inventario-stock/internal/domain"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación de StockRepository sobre PostgreSQL (usable con pool o tx).
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

const stockColumns = `tenant_id, branch_id, product_id, qty_on_hand, qty_allocated, updated_at`

// Get obtiene el agregado; si no existe devuelve uno en cero.
func (r *StockRepo) Get(ctx context.Context, tenantID, branchID, productID string) (*entity.ProductStock, error) {
	query := `SELECT ` + stockColumns + `
		FROM product_stock WHERE tenant_id = $1 AND branch_id = $2 AND product_id = $3`
	s, err := scanStock(r.q.QueryRow(ctx, query, tenantID, branchID, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &entity.ProductStock{TenantID: tenantID, BranchID: branchID, ProductID: productID}, nil
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return s, nil
}

// GetForUpdate crea la fila si falta y la bloquea (SELECT FOR UPDATE): es el punto de serialización
// de cualquier movimiento del producto en la sucursal, incluso la primera recepción.
func (r *StockRepo) GetForUpdate(ctx context.Context, tenantID, branchID, productID string) (*entity.ProductStock, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO product_stock (tenant_id, branch_id, product_id, qty_on_hand, qty_allocated, updated_at)
		VALUES ($1, $2, $3, 0, 0, now())
		ON CONFLICT (tenant_id, branch_id, product_id) DO NOTHING`,
		tenantID, branchID, productID)
	if err != nil {
		return nil, fmt.Errorf("ensure stock row: %w", err)
	}
	query := `SELECT ` + stockColumns + `
		FROM product_stock WHERE tenant_id = $1 AND branch_id = $2 AND product_id = $3
		FOR UPDATE`
	s, err := scanStock(r.q.QueryRow(ctx, query, tenantID, branchID, productID))
	if err != nil {
		return nil, fmt.Errorf("get stock for update: %w", err)
	}
	return s, nil
}

// AddOnHand suma delta a qty_on_hand (upsert) y devuelve la fila resultante.
func (r *StockRepo) AddOnHand(ctx context.Context, tenantID, branchID, productID string, delta int) (*entity.ProductStock, error) {
	query := `
		INSERT INTO product_stock (tenant_id, branch_id, product_id, qty_on_hand, qty_allocated, updated_at)
		VALUES ($1, $2, $3, $4, 0, now())
		ON CONFLICT (tenant_id, branch_id, product_id)
		DO UPDATE SET qty_on_hand = product_stock.qty_on_hand + EXCLUDED.qty_on_hand, updated_at = now()
		RETURNING ` + stockColumns
	s, err := scanStock(r.q.QueryRow(ctx, query, tenantID, branchID, productID, delta))
	if err != nil {
		if isCheckViolation(err) {
			return nil, domain.Conflict("qty_on_hand would become negative")
		}
		return nil, fmt.Errorf("add on hand: %w", err)
	}
	return s, nil
}

func scanStock(row pgx.Row) (*entity.ProductStock, error) {
	var s entity.ProductStock
	if err := row.Scan(&s.TenantID, &s.BranchID, &s.ProductID, &s.QtyOnHand, &s.QtyAllocated, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
