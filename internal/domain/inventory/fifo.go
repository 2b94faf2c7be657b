package inventory

import (
	"sort"

	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
)

// SortFIFO ordena lotes por (ReceivedAt, CreatedAt, ID) ascendente: el más antiguo primero,
// empates por orden de inserción y luego por identidad.
func SortFIFO(lots []*entity.StockLot) {
	sort.SliceStable(lots, func(i, j int) bool {
		return FIFOLess(lots[i], lots[j])
	})
}

// FIFOLess compara dos lotes según el orden FIFO.
func FIFOLess(a, b *entity.StockLot) bool {
	if !a.ReceivedAt.Equal(b.ReceivedAt) {
		return a.ReceivedAt.Before(b.ReceivedAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// AllocateFIFO recorre los lotes en orden FIFO tomando min(pendiente, restante) de cada uno.
// Devuelve las asignaciones y la cantidad que no pudo cubrirse (0 si alcanzó).
// No modifica los lotes.
func AllocateFIFO(lots []*entity.StockLot, qty int) ([]entity.LotConsumption, int) {
	ordered := make([]*entity.StockLot, 0, len(lots))
	for _, l := range lots {
		if l.QtyRemaining > 0 {
			ordered = append(ordered, l)
		}
	}
	SortFIFO(ordered)

	remaining := qty
	allocs := make([]entity.LotConsumption, 0, len(ordered))
	for _, lot := range ordered {
		if remaining == 0 {
			break
		}
		take := min(remaining, lot.QtyRemaining)
		allocs = append(allocs, entity.LotConsumption{
			LotID:         lot.ID,
			Qty:           take,
			UnitCostPence: lot.UnitCostPence,
		})
		remaining -= take
	}
	return allocs, remaining
}

// AggregateLots suma cantidades por lote conservando el orden de primera aparición.
func AggregateLots(lots []entity.LotConsumption) []entity.LotConsumption {
	idx := make(map[string]int, len(lots))
	out := make([]entity.LotConsumption, 0, len(lots))
	for _, l := range lots {
		if i, ok := idx[l.LotID]; ok {
			out[i].Qty += l.Qty
			continue
		}
		idx[l.LotID] = len(out)
		out = append(out, l)
	}
	return out
}
