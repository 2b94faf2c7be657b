package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateTransferItemRequest producto y cantidad solicitada.
type CreateTransferItemRequest struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

// CreateTransferRequest body para POST /api/transfers.
type CreateTransferRequest struct {
	SourceBranchID      string                      `json:"sourceBranchId"`
	DestinationBranchID string                      `json:"destinationBranchId"`
	Notes               *string                     `json:"notes,omitempty"`
	Items               []CreateTransferItemRequest `json:"items"`
}

// ReviewTransferItemRequest cantidad aprobada para un ítem.
type ReviewTransferItemRequest struct {
	ItemID      string `json:"itemId"`
	QtyApproved int    `json:"qtyApproved"`
}

// ReviewTransferRequest body para POST /api/transfers/:id/review. Decision: approve | reject.
type ReviewTransferRequest struct {
	Decision string                      `json:"decision"`
	Notes    *string                     `json:"notes,omitempty"`
	Items    []ReviewTransferItemRequest `json:"items,omitempty"`
}

// TransferItemQtyRequest cantidad por ítem para envío o recepción.
type TransferItemQtyRequest struct {
	ItemID string `json:"itemId"`
	Qty    int    `json:"qty"`
}

// TransferItemsRequest body de ship/receive. Sin ítems = todo lo pendiente.
type TransferItemsRequest struct {
	Items []TransferItemQtyRequest `json:"items,omitempty"`
}

// ReverseTransferRequest body para POST /api/transfers/:id/reverse.
type ReverseTransferRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// ShipmentBatchDTO envío parcial de un ítem.
type ShipmentBatchDTO struct {
	BatchNumber     int                 `json:"batchNumber"`
	Qty             int                 `json:"qty"`
	ShippedAt       time.Time           `json:"shippedAt"`
	ShippedByUserID string              `json:"shippedByUserId"`
	LotsConsumed    []LotConsumptionDTO `json:"lotsConsumed"`
}

// TransferItemDTO línea del traslado.
type TransferItemDTO struct {
	ID               string              `json:"id"`
	ProductID        string              `json:"productId"`
	QtyRequested     int                 `json:"qtyRequested"`
	QtyApproved      *int                `json:"qtyApproved"`
	QtyShipped       int                 `json:"qtyShipped"`
	QtyReceived      int                 `json:"qtyReceived"`
	AvgUnitCostPence *int64              `json:"avgUnitCostPence"`
	AvgUnitCost      *decimal.Decimal    `json:"avgUnitCost"`
	ShipmentBatches  []ShipmentBatchDTO  `json:"shipmentBatches"`
	LotsConsumed     []LotConsumptionDTO `json:"lotsConsumed"`
}

// TransferDTO traslado con sus ítems.
type TransferDTO struct {
	ID                   string            `json:"id"`
	TransferNumber       string            `json:"transferNumber"`
	SourceBranchID       string            `json:"sourceBranchId"`
	DestinationBranchID  string            `json:"destinationBranchId"`
	Status               string            `json:"status"`
	RequestedByUserID    string            `json:"requestedByUserId"`
	RequestNotes         *string           `json:"requestNotes"`
	ReviewedByUserID     *string           `json:"reviewedByUserId"`
	ReviewNotes          *string           `json:"reviewNotes"`
	ReviewedAt           *time.Time        `json:"reviewedAt"`
	ShippedByUserID      *string           `json:"shippedByUserId"`
	ShippedAt            *time.Time        `json:"shippedAt"`
	CompletedAt          *time.Time        `json:"completedAt"`
	DispatchNotePdfURL   *string           `json:"dispatchNotePdfUrl"`
	IsReversal           bool              `json:"isReversal"`
	ReversalOfID         *string           `json:"reversalOfId"`
	ReversedByTransferID *string           `json:"reversedByTransferId"`
	ReversalReason       *string           `json:"reversalReason"`
	CreatedAt            time.Time         `json:"createdAt"`
	UpdatedAt            time.Time         `json:"updatedAt"`
	Items                []TransferItemDTO `json:"items"`
}

// TransferPageDTO página de traslados.
type TransferPageDTO struct {
	Items    []TransferDTO `json:"items"`
	PageInfo CursorPage    `json:"pageInfo"`
}
