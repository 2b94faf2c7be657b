package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jhoicas/Inventario-stock/internal/domain"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/internal/domain/repository"
	"github.com/jhoicas/Inventario-stock/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_RollbackDescartaCambios(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		require.NoError(t, repos.Lots().Create(ctx, &entity.StockLot{ID: "l1", TenantID: "t", BranchID: "b", ProductID: "p", QtyReceived: 5, QtyRemaining: 5}))
		_, err := repos.Stock().AddOnHand(ctx, "t", "b", "p", 5)
		require.NoError(t, err)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.LotsOf("t", "b", "p"))
	st, err := s.Stock().Get(ctx, "t", "b", "p")
	require.NoError(t, err)
	assert.Equal(t, 0, st.QtyOnHand)
}

func TestRun_LecturasVenSoloLoConfirmado(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	err := s.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Stock().AddOnHand(ctx, "t", "b", "p", 3); err != nil {
			return err
		}
		outside, err := s.Stock().Get(ctx, "t", "b", "p")
		require.NoError(t, err)
		assert.Equal(t, 0, outside.QtyOnHand)
		return nil
	})
	require.NoError(t, err)

	st, err := s.Stock().Get(ctx, "t", "b", "p")
	require.NoError(t, err)
	assert.Equal(t, 3, st.QtyOnHand)
}

func TestLots_RespetaLimitesDeCantidad(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, s.Lots().Create(ctx, &entity.StockLot{ID: "l1", TenantID: "t", BranchID: "b", ProductID: "p", QtyReceived: 5, QtyRemaining: 5}))

	assert.Equal(t, domain.KindConflict, domain.KindOf(s.Lots().AddRemaining(ctx, "l1", 1)))
	assert.Equal(t, domain.KindConflict, domain.KindOf(s.Lots().AddRemaining(ctx, "l1", -6)))
	assert.NoError(t, s.Lots().AddRemaining(ctx, "l1", -5))
	assert.Empty(t, mustOpen(t, s))
}

func mustOpen(t *testing.T, s *memory.Store) []*entity.StockLot {
	t.Helper()
	lots, err := s.Lots().ListOpen(context.Background(), "t", "b", "p")
	require.NoError(t, err)
	return lots
}

func TestTransfers_NumeroUnicoPorTenant(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()
	now := time.Now()
	tr := &entity.StockTransfer{ID: "a", TenantID: "t", TransferNumber: "TRF-2026-0001", CreatedAt: now}
	require.NoError(t, s.Transfers().Create(ctx, tr))

	err := s.Transfers().Create(ctx, &entity.StockTransfer{ID: "b", TenantID: "t", TransferNumber: "TRF-2026-0001", CreatedAt: now})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	// Otro tenant puede usar el mismo número.
	require.NoError(t, s.Transfers().Create(ctx, &entity.StockTransfer{ID: "c", TenantID: "t2", TransferNumber: "TRF-2026-0001", CreatedAt: now}))

	require.NoError(t, s.Transfers().Create(ctx, &entity.StockTransfer{ID: "d", TenantID: "t", TransferNumber: "TRF-2026-10000", CreatedAt: now}))
	max, err := s.Transfers().MaxTransferNumber(ctx, "t", "TRF-2026-")
	require.NoError(t, err)
	assert.Equal(t, "TRF-2026-10000", max)
}

func TestTransfers_CopiasIndependientes(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()
	qty := 3
	require.NoError(t, s.Transfers().Create(ctx, &entity.StockTransfer{
		ID: "a", TenantID: "t", TransferNumber: "TRF-2026-0001",
		Items: []entity.StockTransferItem{{ID: "i", QtyRequested: 3, QtyApproved: &qty}},
	}))

	got, err := s.Transfers().GetByID(ctx, "t", "a")
	require.NoError(t, err)
	*got.Items[0].QtyApproved = 99
	got.Items[0].QtyShipped = 99

	again, err := s.Transfers().GetByID(ctx, "t", "a")
	require.NoError(t, err)
	assert.Equal(t, 3, *again.Items[0].QtyApproved)
	assert.Equal(t, 0, again.Items[0].QtyShipped)

	missing, err := s.Transfers().GetByID(ctx, "otro", "a")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
