package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferStatus estado del traslado entre sucursales.
type TransferStatus string

// Estados del traslado.
const (
	TransferRequested         TransferStatus = "REQUESTED"
	TransferApproved          TransferStatus = "APPROVED"
	TransferRejected          TransferStatus = "REJECTED"
	TransferInTransit         TransferStatus = "IN_TRANSIT"
	TransferPartiallyReceived TransferStatus = "PARTIALLY_RECEIVED"
	TransferCompleted         TransferStatus = "COMPLETED"
	TransferCancelled         TransferStatus = "CANCELLED"
)

// Valid indica si el estado es conocido.
func (s TransferStatus) Valid() bool {
	switch s {
	case TransferRequested, TransferApproved, TransferRejected, TransferInTransit,
		TransferPartiallyReceived, TransferCompleted, TransferCancelled:
		return true
	}
	return false
}

// Terminal estados sin más transiciones (el reverso crea un traslado nuevo, no es transición).
func (s TransferStatus) Terminal() bool {
	return s == TransferRejected || s == TransferCancelled || s == TransferCompleted
}

// ShipmentBatch un envío parcial dentro del historial acumulado de un ítem.
type ShipmentBatch struct {
	BatchNumber     int              `json:"batchNumber"`
	Qty             int              `json:"qty"`
	ShippedAt       time.Time        `json:"shippedAt"`
	ShippedByUserID string           `json:"shippedByUserId"`
	LotsConsumed    []LotConsumption `json:"lotsConsumed"`
}

// StockTransferItem línea del traslado. QtyApproved es nil hasta la revisión.
type StockTransferItem struct {
	ID               string
	TransferID       string
	ProductID        string
	QtyRequested     int
	QtyApproved      *int
	QtyShipped       int
	QtyReceived      int
	AvgUnitCostPence *int64
	AvgUnitCost      *decimal.Decimal // sin redondear, 6 decimales
	ShipmentBatches  []ShipmentBatch
	LotsConsumed     []LotConsumption
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ApprovedQty cantidad aprobada efectiva (0 antes de la revisión).
func (it *StockTransferItem) ApprovedQty() int {
	if it.QtyApproved == nil {
		return 0
	}
	return *it.QtyApproved
}

// RemainingToShip cantidad aprobada aún no enviada.
func (it *StockTransferItem) RemainingToShip() int {
	return it.ApprovedQty() - it.QtyShipped
}

// RemainingToReceive cantidad enviada aún no recibida.
func (it *StockTransferItem) RemainingToReceive() int {
	return it.QtyShipped - it.QtyReceived
}

// NextBatchNumber número del siguiente lote de envío (1-based, monótono).
func (it *StockTransferItem) NextBatchNumber() int {
	n := 0
	for _, b := range it.ShipmentBatches {
		if b.BatchNumber > n {
			n = b.BatchNumber
		}
	}
	return n + 1
}

// StockTransfer solicitud de traslado de stock entre dos sucursales.
type StockTransfer struct {
	ID                   string
	TenantID             string
	TransferNumber       string
	SourceBranchID       string
	DestinationBranchID  string
	Status               TransferStatus
	RequestedByUserID    string
	RequestNotes         *string
	ReviewedByUserID     *string
	ReviewNotes          *string
	ReviewedAt           *time.Time
	ShippedByUserID      *string
	ShippedAt            *time.Time
	CompletedAt          *time.Time
	DispatchNotePdfURL   *string
	IsReversal           bool
	ReversalOfID         *string
	ReversedByTransferID *string
	ReversalReason       *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Items                []StockTransferItem
}

// Item busca un ítem por ID.
func (t *StockTransfer) Item(itemID string) *StockTransferItem {
	for i := range t.Items {
		if t.Items[i].ID == itemID {
			return &t.Items[i]
		}
	}
	return nil
}

// FullyShipped todos los ítems enviaron su cantidad aprobada.
func (t *StockTransfer) FullyShipped() bool {
	for i := range t.Items {
		if t.Items[i].QtyShipped != t.Items[i].ApprovedQty() {
			return false
		}
	}
	return true
}

// FullyReceived todos los ítems recibieron lo enviado.
func (t *StockTransfer) FullyReceived() bool {
	for i := range t.Items {
		if t.Items[i].QtyReceived != t.Items[i].QtyShipped {
			return false
		}
	}
	return true
}
