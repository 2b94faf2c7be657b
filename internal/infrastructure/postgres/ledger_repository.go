package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/Inventario-stock/internal/domain"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/internal/domain/repository"
)

var _ repository.StockLedgerRepository = (*StockLedgerRepo)(nil)

// StockLedgerRepo libro de stock append-only sobre PostgreSQL.
type StockLedgerRepo struct {
	q Querier
}

// NewStockLedgerRepository construye el adaptador del libro.
func NewStockLedgerRepository(q Querier) *StockLedgerRepo {
	return &StockLedgerRepo{q: q}
}

const ledgerColumns = `id, tenant_id, branch_id, product_id, lot_id, kind, qty_delta,
	reason, actor_user_id, occurred_at, created_at`

// Append inserta una fila. Las filas nunca se actualizan ni se borran.
func (r *StockLedgerRepo) Append(ctx context.Context, e *entity.StockLedgerEntry) error {
	query := `INSERT INTO stock_ledger (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		e.ID, e.TenantID, e.BranchID, e.ProductID, e.LotID, string(e.Kind), e.QtyDelta,
		e.Reason, e.ActorUserID, e.OccurredAt, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// List pagina por keyset sobre (created_at, id). El cursor se resuelve a su posición antes de filtrar.
func (r *StockLedgerRepo) List(ctx context.Context, f repository.LedgerFilter) ([]*entity.StockLedgerEntry, error) {
	w := newWhere()
	w.add("tenant_id = %s", f.TenantID)
	if f.ProductID != "" {
		w.add("product_id = %s", f.ProductID)
	}
	if f.BranchID != "" {
		w.add("branch_id = %s", f.BranchID)
	}
	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		w.add("kind = ANY(%s)", kinds)
	}
	if f.MinQty != nil {
		w.add("qty_delta >= %s", *f.MinQty)
	}
	if f.MaxQty != nil {
		w.add("qty_delta <= %s", *f.MaxQty)
	}
	if f.OccurredFrom != nil {
		w.add("occurred_at >= %s", *f.OccurredFrom)
	}
	if f.OccurredTo != nil {
		w.add("occurred_at <= %s", *f.OccurredTo)
	}

	order := "DESC"
	cmp := "<"
	if f.Ascending {
		order, cmp = "ASC", ">"
	}
	if f.Cursor != "" {
		var createdAt time.Time
		err := r.q.QueryRow(ctx,
			`SELECT created_at FROM stock_ledger WHERE tenant_id = $1 AND id = $2`,
			f.TenantID, f.Cursor,
		).Scan(&createdAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.Validation("invalid cursor")
			}
			return nil, fmt.Errorf("resolve ledger cursor: %w", err)
		}
		w.add2("(created_at, id) "+cmp+" (%s, %s)", createdAt, f.Cursor)
	}

	query := `SELECT ` + ledgerColumns + ` FROM stock_ledger WHERE ` + w.String() +
		` ORDER BY created_at ` + order + `, id ` + order
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := r.q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var out []*entity.StockLedgerEntry
	for rows.Next() {
		var e entity.StockLedgerEntry
		var kind string
		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.BranchID, &e.ProductID, &e.LotID, &kind, &e.QtyDelta,
			&e.Reason, &e.ActorUserID, &e.OccurredAt, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Kind = entity.LedgerKind(kind)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	return out, nil
}

// where acumula condiciones AND con placeholders numerados.
type where struct {
	conds []string
	args  []any
}

func newWhere() *where { return &where{} }

func (w *where) next(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) add(cond string, v any) {
	w.conds = append(w.conds, fmt.Sprintf(cond, w.next(v)))
}

func (w *where) add2(cond string, a, b any) {
	pa := w.next(a)
	pb := w.next(b)
	w.conds = append(w.conds, fmt.Sprintf(cond, pa, pb))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return "TRUE"
	}
	return strings.Join(w.conds, " AND ")
}
