package transfer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jhoicas/Inventario-stock/internal/application/audit"
	"github.com/jhoicas/Inventario-stock/internal/application/inventory"
	"github.com/jhoicas/Inventario-stock/internal/domain"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	invdomain "github.com/jhoicas/Inventario-stock/internal/domain/inventory"
	"github.com/jhoicas/Inventario-stock/internal/domain/repository"
)

// ItemQty cantidad a enviar o recibir de un ítem.
type ItemQty struct {
	ItemID string
	Qty    int
}

// Ship envía (total o parcialmente) un traslado APPROVED desde la sucursal origen.
// Sin ítems envía todo lo aprobado pendiente. Cada ítem enviado consume stock FIFO en origen y
// agrega un lote de envío a su historial; el traslado pasa a IN_TRANSIT cuando todo lo aprobado salió.
func (uc *UseCase) Ship(ctx context.Context, actor entity.Actor, transferID string, items []ItemQty) (*entity.StockTransfer, error) {
	if err := validateItemQtys(items); err != nil {
		return nil, err
	}
	t, err := uc.transition(ctx, actor, transferID, sourceMember, func(ctx context.Context, repos repository.Repositories, t *entity.StockTransfer) error {
		if t.Status != entity.TransferApproved {
			return domain.Conflict("Only approved transfers can be shipped (status %s)", t.Status)
		}
		plan, err := planShipment(t, items)
		if err != nil {
			return err
		}
		now := uc.now()
		for _, p := range plan {
			it := t.Item(p.ItemID)
			batchNo := it.NextBatchNumber()
			reason := fmt.Sprintf("Transfer %s shipment %d", t.TransferNumber, batchNo)
			res, err := uc.ledger.ConsumeInTx(ctx, repos, actor, inventory.ConsumeInput{
				BranchID:   t.SourceBranchID,
				ProductID:  it.ProductID,
				Qty:        p.Qty,
				Reason:     &reason,
				OccurredAt: &now,
			})
			if err != nil {
				return err
			}
			it.ShipmentBatches = append(it.ShipmentBatches, entity.ShipmentBatch{
				BatchNumber:     batchNo,
				Qty:             p.Qty,
				ShippedAt:       now,
				ShippedByUserID: actor.UserID,
				LotsConsumed:    res.Allocations,
			})
			it.QtyShipped += p.Qty
			it.LotsConsumed = invdomain.AggregateLots(append(append([]entity.LotConsumption(nil), it.LotsConsumed...), res.Allocations...))
			it.AvgUnitCost = invdomain.AverageUnitCost(invdomain.BatchCostParts(it.ShipmentBatches))
			it.AvgUnitCostPence = invdomain.RoundPence(it.AvgUnitCost)
			it.UpdatedAt = now
		}
		t.ShippedByUserID = &actor.UserID
		t.ShippedAt = &now
		t.UpdatedAt = now
		if t.FullyShipped() {
			t.Status = entity.TransferInTransit
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.ledger.Invalidate(ctx, levelKeys(t.TenantID, t.SourceBranchID, t.Items)...)
	return t, nil
}

// Receive recibe (total o parcialmente) un traslado IN_TRANSIT o PARTIALLY_RECEIVED en la sucursal destino.
// Sin ítems recibe todo lo enviado pendiente. Cada recepción crea un lote en destino valorizado al costo
// promedio del ítem y con el número de traslado como referencia de origen.
func (uc *UseCase) Receive(ctx context.Context, actor entity.Actor, transferID string, items []ItemQty) (*entity.StockTransfer, error) {
	if err := validateItemQtys(items); err != nil {
		return nil, err
	}
	t, err := uc.transition(ctx, actor, transferID, destinationMember, func(ctx context.Context, repos repository.Repositories, t *entity.StockTransfer) error {
		if t.Status != entity.TransferInTransit && t.Status != entity.TransferPartiallyReceived {
			return domain.Conflict("Only in-transit transfers can be received (status %s)", t.Status)
		}
		plan, err := planReceipt(t, items)
		if err != nil {
			return err
		}
		now := uc.now()
		reason := fmt.Sprintf("Transfer %s receipt", t.TransferNumber)
		for _, p := range plan {
			it := t.Item(p.ItemID)
			if _, err := uc.ledger.ReceiveInTx(ctx, repos, actor, inventory.ReceiveInput{
				BranchID:      t.DestinationBranchID,
				ProductID:     it.ProductID,
				Qty:           p.Qty,
				UnitCostPence: it.AvgUnitCostPence,
				SourceRef:     &t.TransferNumber,
				Reason:        &reason,
				OccurredAt:    &now,
			}); err != nil {
				return err
			}
			it.QtyReceived += p.Qty
			it.UpdatedAt = now
		}
		t.UpdatedAt = now
		if t.FullyReceived() {
			t.Status = entity.TransferCompleted
			t.CompletedAt = &now
		} else {
			t.Status = entity.TransferPartiallyReceived
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.ledger.Invalidate(ctx, levelKeys(t.TenantID, t.DestinationBranchID, t.Items)...)
	return t, nil
}

// Reverse deshace un traslado COMPLETED creando uno nuevo en sentido contrario, ya completado:
// consume en el destino original y restaura por ID los lotes que se consumieron en el origen original,
// conservando su costo. Ambos traslados quedan enlazados.
func (uc *UseCase) Reverse(ctx context.Context, actor entity.Actor, transferID string, reason *string) (*entity.StockTransfer, error) {
	original, err := uc.load(ctx, actor, transferID)
	if err != nil {
		return nil, err
	}
	if err := uc.authorize(ctx, actor, original, destinationMember); err != nil {
		return nil, err
	}
	unlock, err := uc.lock(ctx, actor.TenantID, transferID)
	if err != nil {
		return nil, err
	}
	defer unlock(context.WithoutCancel(ctx))

	var reversal *entity.StockTransfer
	err = retryOnDuplicate(ctx, uc.numbering.Attempts, uc.numbering.Backoff, func(int) error {
		return uc.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
			orig, err := repos.Transfers().GetForUpdate(ctx, actor.TenantID, transferID)
			if err != nil {
				return fmt.Errorf("lock transfer: %w", err)
			}
			if orig == nil {
				return domain.NotFound("transfer %s not found", transferID)
			}
			if orig.Status != entity.TransferCompleted {
				return domain.Conflict("Only completed transfers can be reversed")
			}
			if orig.ReversedByTransferID != nil {
				return domain.Conflict("Transfer %s has already been reversed", orig.TransferNumber)
			}
			before := cloneForAudit(orig)

			now := uc.now()
			number, err := uc.nextNumber(ctx, repos, actor.TenantID, now)
			if err != nil {
				return err
			}
			r := &entity.StockTransfer{
				ID:                  uuid.New().String(),
				TenantID:            actor.TenantID,
				TransferNumber:      number,
				SourceBranchID:      orig.DestinationBranchID,
				DestinationBranchID: orig.SourceBranchID,
				Status:              entity.TransferCompleted,
				RequestedByUserID:   actor.UserID,
				ShippedByUserID:     &actor.UserID,
				ShippedAt:           &now,
				CompletedAt:         &now,
				IsReversal:          true,
				ReversalOfID:        &orig.ID,
				ReversalReason:      reason,
				CreatedAt:           now,
				UpdatedAt:           now,
			}
			if reason != nil && *reason != "" {
				notes := fmt.Sprintf("Reversal of %s: %s", orig.TransferNumber, *reason)
				r.RequestNotes = &notes
			}

			ledgerReason := fmt.Sprintf("Reversal of %s", orig.TransferNumber)
			for i := range orig.Items {
				oi := &orig.Items[i]
				if oi.QtyReceived == 0 {
					continue
				}
				// Sale del destino original en FIFO.
				res, err := uc.ledger.ConsumeInTx(ctx, repos, actor, inventory.ConsumeInput{
					BranchID:   orig.DestinationBranchID,
					ProductID:  oi.ProductID,
					Qty:        oi.QtyReceived,
					Reason:     &ledgerReason,
					OccurredAt: &now,
				})
				if err != nil {
					return err
				}
				// Vuelve a los lotes originales del origen.
				restore := make([]inventory.LotRestore, 0, len(oi.LotsConsumed))
				for _, l := range restoreLots(oi) {
					restore = append(restore, inventory.LotRestore{LotID: l.LotID, Qty: l.Qty})
				}
				if _, err := uc.ledger.RestoreInTx(ctx, repos, actor, inventory.RestoreInput{
					BranchID:   orig.SourceBranchID,
					Lots:       restore,
					Reason:     &ledgerReason,
					OccurredAt: &now,
				}); err != nil {
					return err
				}

				qty := oi.QtyReceived
				avg := invdomain.AverageUnitCost(invdomain.LotCostParts(res.Allocations))
				r.Items = append(r.Items, entity.StockTransferItem{
					ID:           uuid.New().String(),
					TransferID:   r.ID,
					ProductID:    oi.ProductID,
					QtyRequested: qty,
					QtyApproved:  &qty,
					QtyShipped:   qty,
					QtyReceived:  qty,
					ShipmentBatches: []entity.ShipmentBatch{{
						BatchNumber:     1,
						Qty:             qty,
						ShippedAt:       now,
						ShippedByUserID: actor.UserID,
						LotsConsumed:    res.Allocations,
					}},
					LotsConsumed:     res.Allocations,
					AvgUnitCostPence: invdomain.RoundPence(avg),
					AvgUnitCost:      avg,
					CreatedAt:        now,
					UpdatedAt:        now,
				})
			}
			if len(r.Items) == 0 {
				return domain.Validation("transfer %s moved no stock, nothing to reverse", orig.TransferNumber)
			}

			if err := repos.Transfers().Create(ctx, r); err != nil {
				return err
			}
			orig.ReversedByTransferID = &r.ID
			orig.UpdatedAt = now
			if err := repos.Transfers().Update(ctx, orig); err != nil {
				return fmt.Errorf("update transfer: %w", err)
			}
			uc.audit.Record(ctx, repos, actor,
				audit.Change{EntityType: entity.AuditEntityTransfer, EntityID: r.ID, Action: "CREATE", After: *r},
				audit.Change{EntityType: entity.AuditEntityTransfer, EntityID: orig.ID, Action: "REVERSED", Before: before, After: *orig},
			)
			reversal = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	keys := levelKeys(actor.TenantID, reversal.SourceBranchID, reversal.Items)
	keys = append(keys, levelKeys(actor.TenantID, reversal.DestinationBranchID, reversal.Items)...)
	uc.ledger.Invalidate(ctx, keys...)
	uc.log.Info().
		Str("tenant_id", actor.TenantID).
		Str("transfer_id", transferID).
		Str("reversal_id", reversal.ID).
		Str("transfer_number", reversal.TransferNumber).
		Msg("traslado revertido")
	return reversal, nil
}

// restoreLots lotes a restaurar en origen: los consumidos por todos los envíos del ítem.
func restoreLots(it *entity.StockTransferItem) []entity.LotConsumption {
	var all []entity.LotConsumption
	for _, b := range it.ShipmentBatches {
		all = append(all, b.LotsConsumed...)
	}
	if len(all) == 0 {
		all = it.LotsConsumed
	}
	return invdomain.AggregateLots(all)
}

func validateItemQtys(items []ItemQty) error {
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.ItemID == "" {
			return domain.Validation("itemId is required")
		}
		if it.Qty <= 0 {
			return domain.Validation("qty for item %s must be greater than zero", it.ItemID)
		}
		if seen[it.ItemID] {
			return domain.Validation("item %s appears more than once", it.ItemID)
		}
		seen[it.ItemID] = true
	}
	return nil
}

// planShipment sin ítems: todo lo aprobado pendiente. Con ítems: cada qty <= aprobado - enviado.
func planShipment(t *entity.StockTransfer, items []ItemQty) ([]ItemQty, error) {
	var plan []ItemQty
	if len(items) == 0 {
		for _, it := range t.Items {
			if r := it.RemainingToShip(); r > 0 {
				plan = append(plan, ItemQty{ItemID: it.ID, Qty: r})
			}
		}
	} else {
		for _, req := range items {
			it := t.Item(req.ItemID)
			if it == nil {
				return nil, domain.Validation("item %s does not belong to transfer %s", req.ItemID, t.TransferNumber)
			}
			if req.Qty > it.RemainingToShip() {
				return nil, domain.Validation("qty %d for item %s exceeds remaining approved quantity (%d)", req.Qty, it.ID, it.RemainingToShip()).
					WithDetail("itemId", it.ID).
					WithDetail("remaining", it.RemainingToShip())
			}
			plan = append(plan, req)
		}
	}
	if len(plan) == 0 {
		return nil, domain.Validation("no quantity left to ship")
	}
	return plan, nil
}

// planReceipt sin ítems: todo lo enviado pendiente. Con ítems: cada qty <= enviado - recibido.
func planReceipt(t *entity.StockTransfer, items []ItemQty) ([]ItemQty, error) {
	var plan []ItemQty
	if len(items) == 0 {
		for _, it := range t.Items {
			if r := it.RemainingToReceive(); r > 0 {
				plan = append(plan, ItemQty{ItemID: it.ID, Qty: r})
			}
		}
	} else {
		for _, req := range items {
			it := t.Item(req.ItemID)
			if it == nil {
				return nil, domain.Validation("item %s does not belong to transfer %s", req.ItemID, t.TransferNumber)
			}
			if req.Qty > it.RemainingToReceive() {
				return nil, domain.Validation("qty %d for item %s exceeds shipped quantity not yet received (%d)", req.Qty, it.ID, it.RemainingToReceive()).
					WithDetail("itemId", it.ID).
					WithDetail("remaining", it.RemainingToReceive())
			}
			plan = append(plan, req)
		}
	}
	if len(plan) == 0 {
		return nil, domain.Validation("no quantity left to receive")
	}
	return plan, nil
}
