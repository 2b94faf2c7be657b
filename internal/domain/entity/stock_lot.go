package entity

import "time"

// StockLot es un lote de stock físico con costo propio, ordenado FIFO por ReceivedAt.
// Invariante: 0 <= QtyRemaining <= QtyReceived.
type StockLot struct {
	ID            string
	TenantID      string
	BranchID      string
	ProductID     string
	QtyReceived   int
	QtyRemaining  int
	UnitCostPence *int64
	SourceRef     *string
	ReceivedAt    time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LotConsumption cantidad tomada de un lote concreto (con su costo para trazabilidad).
type LotConsumption struct {
	LotID         string `json:"lotId"`
	Qty           int    `json:"qty"`
	UnitCostPence *int64 `json:"unitCostPence"`
}
