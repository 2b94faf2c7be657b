package inventory_test

import (
	"testing"
	"time"

	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pence(v int64) *int64 { return &v }

func lot(id string, received, created time.Time, remaining int, cost int64) *entity.StockLot {
	return &entity.StockLot{
		ID:            id,
		QtyReceived:   remaining,
		QtyRemaining:  remaining,
		UnitCostPence: pence(cost),
		ReceivedAt:    received,
		CreatedAt:     created,
	}
}

// TestAllocateFIFO_AgotaLoteMasAntiguo: 100@1200 (día 1) + 50@1600 (día 2), consumir 120.
func TestAllocateFIFO_AgotaLoteMasAntiguo(t *testing.T) {
	day1 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	// Insertados en orden inverso: el orden de llamada no debe importar.
	lots := []*entity.StockLot{
		lot("b", day2, day2, 50, 1600),
		lot("a", day1, day2.Add(time.Hour), 100, 1200),
	}

	allocs, short := inventory.AllocateFIFO(lots, 120)

	require.Equal(t, 0, short)
	require.Len(t, allocs, 2)
	assert.Equal(t, "a", allocs[0].LotID)
	assert.Equal(t, 100, allocs[0].Qty)
	assert.Equal(t, "b", allocs[1].LotID)
	assert.Equal(t, 20, allocs[1].Qty)
	// AllocateFIFO no muta los lotes.
	assert.Equal(t, 50, lots[0].QtyRemaining)
}

func TestAllocateFIFO_DesempateCreatedAtLuegoID(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	lots := []*entity.StockLot{
		lot("z", at, at.Add(2*time.Second), 5, 1),
		lot("y", at, at.Add(time.Second), 5, 2),
		lot("x", at, at.Add(time.Second), 5, 3),
	}

	allocs, short := inventory.AllocateFIFO(lots, 12)

	require.Equal(t, 0, short)
	require.Len(t, allocs, 3)
	assert.Equal(t, []string{"x", "y", "z"}, []string{allocs[0].LotID, allocs[1].LotID, allocs[2].LotID})
	assert.Equal(t, 2, allocs[2].Qty)
}

func TestAllocateFIFO_Faltante(t *testing.T) {
	at := time.Now()
	allocs, short := inventory.AllocateFIFO([]*entity.StockLot{lot("a", at, at, 3, 10)}, 5)
	assert.Equal(t, 2, short)
	require.Len(t, allocs, 1)
	assert.Equal(t, 3, allocs[0].Qty)
}

func TestAllocateFIFO_IgnoraLotesVacios(t *testing.T) {
	at := time.Now()
	empty := lot("a", at.Add(-time.Hour), at, 0, 10)
	allocs, short := inventory.AllocateFIFO([]*entity.StockLot{empty, lot("b", at, at, 4, 10)}, 4)
	assert.Equal(t, 0, short)
	require.Len(t, allocs, 1)
	assert.Equal(t, "b", allocs[0].LotID)
}

func TestWeightedAverageCost(t *testing.T) {
	tests := []struct {
		name  string
		parts []inventory.CostPart
		want  *int64
	}{
		{"sin partes", nil, nil},
		{"sin costo", []inventory.CostPart{{Qty: 10}}, nil},
		{"un lote", []inventory.CostPart{{Qty: 10, UnitCostPence: pence(1200)}}, pence(1200)},
		{
			"dos lotes",
			[]inventory.CostPart{{Qty: 100, UnitCostPence: pence(1200)}, {Qty: 20, UnitCostPence: pence(1600)}},
			pence(1267), // 152000 / 120 = 1266.67
		},
		{
			"ignora partes sin costo",
			[]inventory.CostPart{{Qty: 10, UnitCostPence: pence(100)}, {Qty: 90}},
			pence(100),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := inventory.WeightedAverageCost(tt.parts)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestAverageUnitCost_SinRedondear(t *testing.T) {
	parts := []inventory.CostPart{{Qty: 100, UnitCostPence: pence(1200)}, {Qty: 20, UnitCostPence: pence(1600)}}
	avg := inventory.AverageUnitCost(parts)
	require.NotNil(t, avg)
	assert.True(t, decimal.RequireFromString("1266.666667").Equal(*avg), avg.String())
	assert.Equal(t, int64(1267), *inventory.RoundPence(avg))

	assert.Nil(t, inventory.AverageUnitCost([]inventory.CostPart{{Qty: 5}}))
	assert.Nil(t, inventory.RoundPence(nil))
}

func TestBatchCostParts_RecalculaSobreTodosLosEnvios(t *testing.T) {
	batches := []entity.ShipmentBatch{
		{BatchNumber: 1, Qty: 40, LotsConsumed: []entity.LotConsumption{{LotID: "a", Qty: 40, UnitCostPence: pence(1000)}}},
		{BatchNumber: 2, Qty: 60, LotsConsumed: []entity.LotConsumption{
			{LotID: "a", Qty: 10, UnitCostPence: pence(1000)},
			{LotID: "b", Qty: 50, UnitCostPence: pence(2000)},
		}},
	}
	got := inventory.WeightedAverageCost(inventory.BatchCostParts(batches))
	require.NotNil(t, got)
	assert.Equal(t, int64(1500), *got)
}

func TestAggregateLots(t *testing.T) {
	out := inventory.AggregateLots([]entity.LotConsumption{
		{LotID: "a", Qty: 1}, {LotID: "b", Qty: 2}, {LotID: "a", Qty: 3},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].LotID)
	assert.Equal(t, 4, out[0].Qty)
	assert.Equal(t, 2, out[1].Qty)
}
