package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/Inventario-stock/internal/domain"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/internal/domain/repository"
)

var _ repository.StockTransferRepository = (*StockTransferRepo)(nil)

// StockTransferRepo traslados e ítems sobre PostgreSQL. Los envíos y lotes consumidos van en JSONB.
type StockTransferRepo struct {
	q Querier
}

// NewStockTransferRepository construye el adaptador de traslados.
func NewStockTransferRepository(q Querier) *StockTransferRepo {
	return &StockTransferRepo{q: q}
}

const transferColumns = `id, tenant_id, transfer_number, source_branch_id, destination_branch_id, status,
	requested_by_user_id, request_notes, reviewed_by_user_id, review_notes, reviewed_at,
	shipped_by_user_id, shipped_at, completed_at, dispatch_note_pdf_url,
	is_reversal, reversal_of_id, reversed_by_transfer_id, reversal_reason, created_at, updated_at`

const transferItemColumns = `id, transfer_id, product_id, qty_requested, qty_approved, qty_shipped, qty_received,
	avg_unit_cost_pence, avg_unit_cost, shipment_batches, lots_consumed, created_at, updated_at`

// Create inserta cabecera e ítems (en batch). Número repetido en el tenant: domain.ErrDuplicate.
func (r *StockTransferRepo) Create(ctx context.Context, t *entity.StockTransfer) error {
	query := `INSERT INTO stock_transfers (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`
	_, err := r.q.Exec(ctx, query,
		t.ID, t.TenantID, t.TransferNumber, t.SourceBranchID, t.DestinationBranchID, string(t.Status),
		t.RequestedByUserID, t.RequestNotes, t.ReviewedByUserID, t.ReviewNotes, t.ReviewedAt,
		t.ShippedByUserID, t.ShippedAt, t.CompletedAt, t.DispatchNotePdfURL,
		t.IsReversal, t.ReversalOfID, t.ReversedByTransferID, t.ReversalReason, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert transfer: %w", err)
	}

	batch := &pgx.Batch{}
	itemQuery := `INSERT INTO stock_transfer_items (position, ` + transferItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	for i := range t.Items {
		it := &t.Items[i]
		batch.Queue(itemQuery,
			i, it.ID, t.ID, it.ProductID, it.QtyRequested, it.QtyApproved, it.QtyShipped, it.QtyReceived,
			it.AvgUnitCostPence, it.AvgUnitCost, batchesOrEmpty(it.ShipmentBatches), lotsOrEmpty(it.LotsConsumed),
			it.CreatedAt, it.UpdatedAt,
		)
	}
	return r.sendBatch(ctx, batch, "insert transfer item")
}

// GetByID traslado con ítems; nil si no existe en el tenant.
func (r *StockTransferRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.StockTransfer, error) {
	return r.get(ctx, tenantID, id, false)
}

// GetForUpdate igual que GetByID bloqueando la cabecera.
func (r *StockTransferRepo) GetForUpdate(ctx context.Context, tenantID, id string) (*entity.StockTransfer, error) {
	return r.get(ctx, tenantID, id, true)
}

func (r *StockTransferRepo) get(ctx context.Context, tenantID, id string, lock bool) (*entity.StockTransfer, error) {
	query := `SELECT ` + transferColumns + ` FROM stock_transfers WHERE tenant_id = $1 AND id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	t, err := scanTransfer(r.q.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	if err := r.loadItems(ctx, []*entity.StockTransfer{t}); err != nil {
		return nil, err
	}
	return t, nil
}

// Update persiste la cabecera y el estado de cada ítem.
func (r *StockTransferRepo) Update(ctx context.Context, t *entity.StockTransfer) error {
	cmd, err := r.q.Exec(ctx, `
		UPDATE stock_transfers SET
			status = $3, reviewed_by_user_id = $4, review_notes = $5, reviewed_at = $6,
			shipped_by_user_id = $7, shipped_at = $8, completed_at = $9, dispatch_note_pdf_url = $10,
			reversed_by_transfer_id = $11, updated_at = $12
		WHERE tenant_id = $1 AND id = $2`,
		t.TenantID, t.ID, string(t.Status), t.ReviewedByUserID, t.ReviewNotes, t.ReviewedAt,
		t.ShippedByUserID, t.ShippedAt, t.CompletedAt, t.DispatchNotePdfURL,
		t.ReversedByTransferID, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	batch := &pgx.Batch{}
	for i := range t.Items {
		it := &t.Items[i]
		batch.Queue(`
			UPDATE stock_transfer_items SET
				qty_approved = $3, qty_shipped = $4, qty_received = $5, avg_unit_cost_pence = $6,
				avg_unit_cost = $7, shipment_batches = $8, lots_consumed = $9, updated_at = $10
			WHERE transfer_id = $1 AND id = $2`,
			t.ID, it.ID, it.QtyApproved, it.QtyShipped, it.QtyReceived, it.AvgUnitCostPence, it.AvgUnitCost,
			batchesOrEmpty(it.ShipmentBatches), lotsOrEmpty(it.LotsConsumed), it.UpdatedAt,
		)
	}
	return r.sendBatch(ctx, batch, "update transfer item")
}

// MaxTransferNumber el sufijo es de ancho mínimo fijo: ordenar por longitud y luego por texto.
func (r *StockTransferRepo) MaxTransferNumber(ctx context.Context, tenantID, prefix string) (string, error) {
	var number string
	err := r.q.QueryRow(ctx, `
		SELECT transfer_number FROM stock_transfers
		WHERE tenant_id = $1 AND left(transfer_number, length($2)) = $2
		ORDER BY length(transfer_number) DESC, transfer_number DESC
		LIMIT 1`, tenantID, prefix).Scan(&number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("max transfer number: %w", err)
	}
	return number, nil
}

// List más recientes primero, keyset sobre (created_at, id).
func (r *StockTransferRepo) List(ctx context.Context, f repository.TransferFilter) ([]*entity.StockTransfer, error) {
	w := newWhere()
	w.add("tenant_id = %s", f.TenantID)
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		w.add("status = ANY(%s)", statuses)
	}
	if f.BranchID != "" {
		switch f.Direction {
		case repository.DirectionInbound:
			w.add("destination_branch_id = %s", f.BranchID)
		case repository.DirectionOutbound:
			w.add("source_branch_id = %s", f.BranchID)
		default:
			w.add("(source_branch_id = %[1]s OR destination_branch_id = %[1]s)", f.BranchID)
		}
	}
	if f.Cursor != "" {
		var createdAt time.Time
		err := r.q.QueryRow(ctx,
			`SELECT created_at FROM stock_transfers WHERE tenant_id = $1 AND id = $2`,
			f.TenantID, f.Cursor,
		).Scan(&createdAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.Validation("invalid cursor")
			}
			return nil, fmt.Errorf("resolve transfer cursor: %w", err)
		}
		w.add2("(created_at, id) < (%s, %s)", createdAt, f.Cursor)
	}

	query := `SELECT ` + transferColumns + ` FROM stock_transfers WHERE ` + w.String() +
		` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	rows, err := r.q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	var out []*entity.StockTransfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	if err := r.loadItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadItems carga los ítems de varios traslados en una sola consulta.
func (r *StockTransferRepo) loadItems(ctx context.Context, transfers []*entity.StockTransfer) error {
	if len(transfers) == 0 {
		return nil
	}
	ids := make([]string, len(transfers))
	byID := make(map[string]*entity.StockTransfer, len(transfers))
	for i, t := range transfers {
		ids[i] = t.ID
		byID[t.ID] = t
	}
	rows, err := r.q.Query(ctx, `SELECT `+transferItemColumns+`
		FROM stock_transfer_items WHERE transfer_id = ANY($1)
		ORDER BY transfer_id, position`, ids)
	if err != nil {
		return fmt.Errorf("list transfer items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it entity.StockTransferItem
		if err := rows.Scan(
			&it.ID, &it.TransferID, &it.ProductID, &it.QtyRequested, &it.QtyApproved, &it.QtyShipped,
			&it.QtyReceived, &it.AvgUnitCostPence, &it.AvgUnitCost, &it.ShipmentBatches, &it.LotsConsumed,
			&it.CreatedAt, &it.UpdatedAt,
		); err != nil {
			return fmt.Errorf("scan transfer item: %w", err)
		}
		if t := byID[it.TransferID]; t != nil {
			t.Items = append(t.Items, it)
		}
	}
	return rows.Err()
}

func (r *StockTransferRepo) sendBatch(ctx context.Context, batch *pgx.Batch, op string) error {
	if batch.Len() == 0 {
		return nil
	}
	br := r.q.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return br.Close()
}

func scanTransfer(row pgx.Row) (*entity.StockTransfer, error) {
	var t entity.StockTransfer
	var status string
	err := row.Scan(
		&t.ID, &t.TenantID, &t.TransferNumber, &t.SourceBranchID, &t.DestinationBranchID, &status,
		&t.RequestedByUserID, &t.RequestNotes, &t.ReviewedByUserID, &t.ReviewNotes, &t.ReviewedAt,
		&t.ShippedByUserID, &t.ShippedAt, &t.CompletedAt, &t.DispatchNotePdfURL,
		&t.IsReversal, &t.ReversalOfID, &t.ReversedByTransferID, &t.ReversalReason, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = entity.TransferStatus(status)
	return &t, nil
}

// JSONB NOT NULL: nunca escribir null.
func batchesOrEmpty(b []entity.ShipmentBatch) []entity.ShipmentBatch {
	if b == nil {
		return []entity.ShipmentBatch{}
	}
	return b
}

func lotsOrEmpty(l []entity.LotConsumption) []entity.LotConsumption {
	if l == nil {
		return []entity.LotConsumption{}
	}
	return l
}
