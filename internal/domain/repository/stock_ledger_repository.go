package repository

import (
	"context"
	"time"

	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
)

// LedgerFilter filtros del listado del libro de stock.
type LedgerFilter struct {
	TenantID     string
	ProductID    string
	BranchID     string
	Kinds        []entity.LedgerKind
	MinQty       *int
	MaxQty       *int
	OccurredFrom *time.Time
	OccurredTo   *time.Time
	Ascending    bool
	// Cursor ID de la última fila de la página anterior (keyset, sin OFFSET).
	Cursor string
	Limit  int
}

// StockLedgerRepository puerto del libro append-only.
type StockLedgerRepository interface {
	Append(ctx context.Context, entry *entity.StockLedgerEntry) error
	// List devuelve hasta Limit filas después del cursor según el orden pedido.
	List(ctx context.Context, f LedgerFilter) ([]*entity.StockLedgerEntry, error)
}
