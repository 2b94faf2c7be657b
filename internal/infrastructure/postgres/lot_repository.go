package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/Inventario-stock/internal/domain"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/internal/domain/repository"
)

var _ repository.StockLotRepository = (*StockLotRepo)(nil)

// StockLotRepo lotes FIFO sobre PostgreSQL.
type StockLotRepo struct {
	q Querier
}

// NewStockLotRepository construye el adaptador de lotes.
func NewStockLotRepository(q Querier) *StockLotRepo {
	return &StockLotRepo{q: q}
}

const lotColumns = `id, tenant_id, branch_id, product_id, qty_received, qty_remaining,
	unit_cost_pence, source_ref, received_at, created_at, updated_at`

// Create inserta un lote nuevo.
func (r *StockLotRepo) Create(ctx context.Context, lot *entity.StockLot) error {
	query := `INSERT INTO stock_lots (` + lotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		lot.ID, lot.TenantID, lot.BranchID, lot.ProductID, lot.QtyReceived, lot.QtyRemaining,
		lot.UnitCostPence, lot.SourceRef, lot.ReceivedAt, lot.CreatedAt, lot.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert lot: %w", err)
	}
	return nil
}

const openLotsQuery = `SELECT ` + lotColumns + `
	FROM stock_lots
	WHERE tenant_id = $1 AND branch_id = $2 AND product_id = $3 AND qty_remaining > 0
	ORDER BY received_at, created_at, id`

// ListOpen lotes con saldo en orden FIFO.
func (r *StockLotRepo) ListOpen(ctx context.Context, tenantID, branchID, productID string) ([]*entity.StockLot, error) {
	return r.list(ctx, openLotsQuery, tenantID, branchID, productID)
}

// ListOpenForUpdate lotes con saldo en orden FIFO, bloqueados.
func (r *StockLotRepo) ListOpenForUpdate(ctx context.Context, tenantID, branchID, productID string) ([]*entity.StockLot, error) {
	return r.list(ctx, openLotsQuery+` FOR UPDATE`, tenantID, branchID, productID)
}

const lotsByIDQuery = `SELECT ` + lotColumns + `
	FROM stock_lots
	WHERE tenant_id = $1 AND branch_id = $2 AND id = ANY($3)
	ORDER BY id`

// GetByIDs lotes de la sucursal con esos IDs.
func (r *StockLotRepo) GetByIDs(ctx context.Context, tenantID, branchID string, ids []string) ([]*entity.StockLot, error) {
	return r.list(ctx, lotsByIDQuery, tenantID, branchID, ids)
}

// GetByIDsForUpdate lotes de la sucursal con esos IDs, bloqueados en orden de ID.
func (r *StockLotRepo) GetByIDsForUpdate(ctx context.Context, tenantID, branchID string, ids []string) ([]*entity.StockLot, error) {
	return r.list(ctx, lotsByIDQuery+` FOR UPDATE`, tenantID, branchID, ids)
}

// AddRemaining suma delta a qty_remaining. El CHECK de la tabla impide salir de [0, qty_received].
func (r *StockLotRepo) AddRemaining(ctx context.Context, lotID string, delta int) error {
	cmd, err := r.q.Exec(ctx, `
		UPDATE stock_lots SET qty_remaining = qty_remaining + $2, updated_at = now()
		WHERE id = $1`, lotID, delta)
	if err != nil {
		if isCheckViolation(err) {
			return domain.Conflict("lot %s quantity out of range", lotID)
		}
		return fmt.Errorf("update lot: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *StockLotRepo) list(ctx context.Context, query string, args ...any) ([]*entity.StockLot, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	defer rows.Close()

	var out []*entity.StockLot
	for rows.Next() {
		var l entity.StockLot
		if err := rows.Scan(
			&l.ID, &l.TenantID, &l.BranchID, &l.ProductID, &l.QtyReceived, &l.QtyRemaining,
			&l.UnitCostPence, &l.SourceRef, &l.ReceivedAt, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan lot: %w", err)
		}
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	return out, nil
}
