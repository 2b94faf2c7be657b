package inventory

import (
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// CostPart cantidad valorizada a un costo unitario (en peniques). UnitCostPence nil = sin costo.
type CostPart struct {
	Qty           int
	UnitCostPence *int64
}

// AvgCostScale decimales del promedio sin redondear (columna NUMERIC(20,6)).
const AvgCostScale = 6

// AverageUnitCost costo promedio ponderado en peniques con AvgCostScale decimales:
// Σ(qty * costo) / Σ(qty) sobre las partes con costo conocido. nil si ninguna parte tiene costo.
// Se recalcula siempre desde la lista completa.
func AverageUnitCost(parts []CostPart) *decimal.Decimal {
	num := decimal.Zero
	den := decimal.Zero
	for _, p := range parts {
		if p.UnitCostPence == nil || p.Qty <= 0 {
			continue
		}
		q := decimal.NewFromInt(int64(p.Qty))
		num = num.Add(q.Mul(decimal.NewFromInt(*p.UnitCostPence)))
		den = den.Add(q)
	}
	if den.IsZero() {
		return nil
	}
	avg := num.DivRound(den, AvgCostScale)
	return &avg
}

// RoundPence redondea un costo promedio al penique; nil se mantiene.
func RoundPence(avg *decimal.Decimal) *int64 {
	if avg == nil {
		return nil
	}
	v := avg.Round(0).IntPart()
	return &v
}

// WeightedAverageCost costo promedio ponderado redondeado al penique.
func WeightedAverageCost(parts []CostPart) *int64 {
	return RoundPence(AverageUnitCost(parts))
}

// BatchCostParts aplana los lotes consumidos de todos los envíos en partes valorizadas.
func BatchCostParts(batches []entity.ShipmentBatch) []CostPart {
	parts := make([]CostPart, 0, len(batches))
	for _, b := range batches {
		parts = append(parts, LotCostParts(b.LotsConsumed)...)
	}
	return parts
}

// LotCostParts convierte consumos de lotes en partes valorizadas.
func LotCostParts(lots []entity.LotConsumption) []CostPart {
	parts := make([]CostPart, 0, len(lots))
	for _, l := range lots {
		parts = append(parts, CostPart{Qty: l.Qty, UnitCostPence: l.UnitCostPence})
	}
	return parts
}
