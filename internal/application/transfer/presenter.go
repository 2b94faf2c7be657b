package transfer

import (
	"github.com/jhoicas/Inventario-stock/internal/application/dto"
	"github.com/jhoicas/Inventario-stock/internal/application/inventory"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
)

// ToDTO traslado con ítems, envíos y lotes para respuestas.
func ToDTO(t *entity.StockTransfer) dto.TransferDTO {
	out := dto.TransferDTO{
		ID:                   t.ID,
		TransferNumber:       t.TransferNumber,
		SourceBranchID:       t.SourceBranchID,
		DestinationBranchID:  t.DestinationBranchID,
		Status:               string(t.Status),
		RequestedByUserID:    t.RequestedByUserID,
		RequestNotes:         t.RequestNotes,
		ReviewedByUserID:     t.ReviewedByUserID,
		ReviewNotes:          t.ReviewNotes,
		ReviewedAt:           t.ReviewedAt,
		ShippedByUserID:      t.ShippedByUserID,
		ShippedAt:            t.ShippedAt,
		CompletedAt:          t.CompletedAt,
		DispatchNotePdfURL:   t.DispatchNotePdfURL,
		IsReversal:           t.IsReversal,
		ReversalOfID:         t.ReversalOfID,
		ReversedByTransferID: t.ReversedByTransferID,
		ReversalReason:       t.ReversalReason,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
		Items:                make([]dto.TransferItemDTO, 0, len(t.Items)),
	}
	for i := range t.Items {
		it := &t.Items[i]
		item := dto.TransferItemDTO{
			ID:               it.ID,
			ProductID:        it.ProductID,
			QtyRequested:     it.QtyRequested,
			QtyApproved:      it.QtyApproved,
			QtyShipped:       it.QtyShipped,
			QtyReceived:      it.QtyReceived,
			AvgUnitCostPence: it.AvgUnitCostPence,
			AvgUnitCost:      it.AvgUnitCost,
			ShipmentBatches:  make([]dto.ShipmentBatchDTO, 0, len(it.ShipmentBatches)),
			LotsConsumed:     inventory.ToLotConsumptionDTOs(it.LotsConsumed),
		}
		for _, b := range it.ShipmentBatches {
			item.ShipmentBatches = append(item.ShipmentBatches, dto.ShipmentBatchDTO{
				BatchNumber:     b.BatchNumber,
				Qty:             b.Qty,
				ShippedAt:       b.ShippedAt,
				ShippedByUserID: b.ShippedByUserID,
				LotsConsumed:    inventory.ToLotConsumptionDTOs(b.LotsConsumed),
			})
		}
		out.Items = append(out.Items, item)
	}
	return out
}

// ToPageDTO página de traslados.
func ToPageDTO(r *ListResult) dto.TransferPageDTO {
	out := dto.TransferPageDTO{Items: make([]dto.TransferDTO, 0, len(r.Items)), PageInfo: r.PageInfo}
	for _, t := range r.Items {
		out.Items = append(out.Items, ToDTO(t))
	}
	return out
}
