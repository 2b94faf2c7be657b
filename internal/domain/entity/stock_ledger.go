package entity

import "time"

// LedgerKind tipo de movimiento en el libro de stock.
type LedgerKind string

// Tipos de movimiento del libro.
const (
	LedgerReceipt     LedgerKind = "RECEIPT"     // entrada
	LedgerConsumption LedgerKind = "CONSUMPTION" // salida FIFO
	LedgerAdjustment  LedgerKind = "ADJUSTMENT"  // ajuste +/-
	LedgerReversal    LedgerKind = "REVERSAL"    // restauración de lote por reverso
)

// Valid indica si el tipo es conocido.
func (k LedgerKind) Valid() bool {
	switch k {
	case LedgerReceipt, LedgerConsumption, LedgerAdjustment, LedgerReversal:
		return true
	}
	return false
}

// StockLedgerEntry fila inmutable del libro (append-only). QtyDelta positivo entrada, negativo salida.
type StockLedgerEntry struct {
	ID          string
	TenantID    string
	BranchID    string
	ProductID   string
	LotID       *string
	Kind        LedgerKind
	QtyDelta    int
	Reason      *string
	ActorUserID *string
	OccurredAt  time.Time
	CreatedAt   time.Time
}
