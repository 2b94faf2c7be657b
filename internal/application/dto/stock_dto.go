package dto

import "time"

// LotDTO lote abierto en una consulta de niveles.
type LotDTO struct {
	ID            string    `json:"id"`
	QtyReceived   int       `json:"qtyReceived"`
	QtyRemaining  int       `json:"qtyRemaining"`
	UnitCostPence *int64    `json:"unitCostPence"`
	SourceRef     *string   `json:"sourceRef"`
	ReceivedAt    time.Time `json:"receivedAt"`
	CreatedAt     time.Time `json:"createdAt"`
}

// StockLevelsDTO agregado + lotes abiertos en orden FIFO para una sucursal/producto.
type StockLevelsDTO struct {
	BranchID     string   `json:"branchId"`
	BranchName   string   `json:"branchName,omitempty"`
	ProductID    string   `json:"productId"`
	QtyOnHand    int      `json:"qtyOnHand"`
	QtyAllocated int      `json:"qtyAllocated"`
	Lots         []LotDTO `json:"lots"`
}

// LedgerEntryDTO fila del libro de stock.
type LedgerEntryDTO struct {
	ID          string    `json:"id"`
	BranchID    string    `json:"branchId"`
	ProductID   string    `json:"productId"`
	LotID       *string   `json:"lotId"`
	Kind        string    `json:"kind"`
	QtyDelta    int       `json:"qtyDelta"`
	Reason      *string   `json:"reason"`
	ActorUserID *string   `json:"actorUserId"`
	OccurredAt  time.Time `json:"occurredAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LedgerPageDTO página del libro.
type LedgerPageDTO struct {
	Items    []LedgerEntryDTO `json:"items"`
	PageInfo CursorPage       `json:"pageInfo"`
}

// ReceiveStockRequest body para POST /api/stock/receive.
type ReceiveStockRequest struct {
	BranchID      string     `json:"branchId"`
	ProductID     string     `json:"productId"`
	Qty           int        `json:"qty"`
	UnitCostPence *int64     `json:"unitCostPence,omitempty"`
	SourceRef     *string    `json:"sourceRef,omitempty"`
	Reason        *string    `json:"reason,omitempty"`
	OccurredAt    *time.Time `json:"occurredAt,omitempty"`
}

// ConsumeStockRequest body para POST /api/stock/consume.
type ConsumeStockRequest struct {
	BranchID   string     `json:"branchId"`
	ProductID  string     `json:"productId"`
	Qty        int        `json:"qty"`
	Reason     *string    `json:"reason,omitempty"`
	OccurredAt *time.Time `json:"occurredAt,omitempty"`
}

// AdjustStockRequest body para POST /api/stock/adjust.
type AdjustStockRequest struct {
	BranchID      string     `json:"branchId"`
	ProductID     string     `json:"productId"`
	QtyDelta      int        `json:"qtyDelta"`
	UnitCostPence *int64     `json:"unitCostPence,omitempty"`
	Reason        *string    `json:"reason,omitempty"`
	OccurredAt    *time.Time `json:"occurredAt,omitempty"`
}

// RestoreLotRequest lote a restaurar.
type RestoreLotRequest struct {
	LotID string `json:"lotId"`
	Qty   int    `json:"qty"`
}

// RestoreLotsRequest body para POST /api/stock/restore.
type RestoreLotsRequest struct {
	BranchID   string              `json:"branchId"`
	Lots       []RestoreLotRequest `json:"lots"`
	Reason     *string             `json:"reason,omitempty"`
	OccurredAt *time.Time          `json:"occurredAt,omitempty"`
}

// LotConsumptionDTO cantidad tomada de (o devuelta a) un lote.
type LotConsumptionDTO struct {
	LotID         string `json:"lotId"`
	Qty           int    `json:"qty"`
	UnitCostPence *int64 `json:"unitCostPence"`
}

// StockDTO agregado resultante de un movimiento.
type StockDTO struct {
	BranchID     string    `json:"branchId"`
	ProductID    string    `json:"productId"`
	QtyOnHand    int       `json:"qtyOnHand"`
	QtyAllocated int       `json:"qtyAllocated"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MovementResultDTO respuesta de receive/consume/adjust/restore.
type MovementResultDTO struct {
	Lot           *LotDTO             `json:"lot,omitempty"`
	Allocations   []LotConsumptionDTO `json:"allocations"`
	LedgerEntries []LedgerEntryDTO    `json:"ledgerEntries"`
	Stocks        []StockDTO          `json:"stocks"`
}
