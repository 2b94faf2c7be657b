package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jhoicas/Inventario-stock/internal/application/audit"
	"github.com/jhoicas/Inventario-stock/internal/application/dto"
	"github.com/jhoicas/Inventario-stock/internal/application/inventory"
	"github.com/jhoicas/Inventario-stock/internal/domain"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLevels_LotesAbiertosEnOrdenFIFO(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day1 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	late := f.receive(t, 5, 900, day1.AddDate(0, 0, 2))
	early := f.receive(t, 4, 800, day1)
	drained := f.receive(t, 1, 700, day1.AddDate(0, 0, -1))
	_, err := f.ledger.Consume(ctx, actor, inventory.ConsumeInput{BranchID: branchA, ProductID: product, Qty: 1})
	require.NoError(t, err)

	lv, err := f.query.GetLevels(ctx, actor, branchA, product)
	require.NoError(t, err)

	assert.Equal(t, 9, lv.QtyOnHand)
	assert.Equal(t, "Almacén A", lv.BranchName)
	require.Len(t, lv.Lots, 2)
	assert.Equal(t, early.ID, lv.Lots[0].ID)
	assert.Equal(t, late.ID, lv.Lots[1].ID)
	for _, l := range lv.Lots {
		assert.NotEqual(t, drained.ID, l.ID)
	}
}

func TestGetLevels_Errores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.query.GetLevels(ctx, actor, branchA, "nope")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	_, err = f.query.GetLevels(ctx, actor, "nope", product)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	_, err = f.query.GetLevels(ctx, actor, branchB, product)
	assert.Equal(t, domain.KindPermissionDenied, domain.KindOf(err))
}

func TestGetLevelsBulk_TodasLasSucursalesActivas(t *testing.T) {
	f := newFixture(t)
	f.receive(t, 7, 100, time.Now())

	levels, err := f.query.GetLevelsBulk(context.Background(), actor, product)
	require.NoError(t, err)

	require.Len(t, levels, 2, "la sucursal inactiva y la de otro tenant no aparecen")
	byBranch := map[string]*dto.StockLevelsDTO{}
	for _, lv := range levels {
		byBranch[lv.BranchID] = lv
	}
	assert.Equal(t, 7, byBranch[branchA].QtyOnHand)
	assert.Len(t, byBranch[branchA].Lots, 1)
	assert.Equal(t, 0, byBranch[branchB].QtyOnHand)
	assert.Empty(t, byBranch[branchB].Lots)
}

func TestListLedger_PaginacionPorCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		f.receive(t, i, 100, time.Now())
	}

	page1, err := f.query.ListLedger(ctx, actor, inventory.LedgerQuery{ProductID: product, Page: dto.CursorPageRequest{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page1.Items, 2)
	assert.True(t, page1.PageInfo.HasMore)
	// Más recientes primero.
	assert.Equal(t, 5, page1.Items[0].QtyDelta)
	assert.Equal(t, 4, page1.Items[1].QtyDelta)

	// Una escritura concurrente no desplaza la página siguiente.
	f.receive(t, 99, 100, time.Now())

	page2, err := f.query.ListLedger(ctx, actor, inventory.LedgerQuery{ProductID: product, Page: dto.CursorPageRequest{Limit: 2, Cursor: page1.PageInfo.NextCursor}})
	require.NoError(t, err)
	require.Len(t, page2.Items, 2)
	assert.Equal(t, 3, page2.Items[0].QtyDelta)
	assert.Equal(t, 2, page2.Items[1].QtyDelta)

	page3, err := f.query.ListLedger(ctx, actor, inventory.LedgerQuery{ProductID: product, Page: dto.CursorPageRequest{Limit: 2, Cursor: page2.PageInfo.NextCursor}})
	require.NoError(t, err)
	require.Len(t, page3.Items, 1)
	assert.False(t, page3.PageInfo.HasMore)
	assert.Empty(t, page3.PageInfo.NextCursor)
}

func TestListLedger_Filtros(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.receive(t, 10, 100, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	_, err := f.ledger.Consume(ctx, actor, inventory.ConsumeInput{BranchID: branchA, ProductID: product, Qty: 3})
	require.NoError(t, err)
	_, err = f.ledger.AdjustStock(ctx, actor, inventory.AdjustInput{BranchID: branchA, ProductID: product, QtyDelta: -1})
	require.NoError(t, err)

	page, err := f.query.ListLedger(ctx, actor, inventory.LedgerQuery{ProductID: product, Kinds: []entity.LedgerKind{entity.LedgerConsumption}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, -3, page.Items[0].QtyDelta)

	maxQty := 0
	page, err = f.query.ListLedger(ctx, actor, inventory.LedgerQuery{ProductID: product, MaxQty: &maxQty, Ascending: true})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "CONSUMPTION", page.Items[0].Kind)
	assert.Equal(t, "ADJUSTMENT", page.Items[1].Kind)

	from := time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	page, err = f.query.ListLedger(ctx, actor, inventory.LedgerQuery{ProductID: product, OccurredFrom: &from, OccurredTo: &to})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "RECEIPT", page.Items[0].Kind)

	_, err = f.query.ListLedger(ctx, actor, inventory.LedgerQuery{ProductID: product, Kinds: []entity.LedgerKind{"OTRO"}})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	_, err = f.query.ListLedger(ctx, actor, inventory.LedgerQuery{ProductID: product, Page: dto.CursorPageRequest{Cursor: "missing"}})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestListLedger_SucursalExigeMembresia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.receive(t, 5, 100, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))

	page, err := f.query.ListLedger(ctx, actor, inventory.LedgerQuery{ProductID: product, BranchID: branchA})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	_, err = f.query.ListLedger(ctx, actor, inventory.LedgerQuery{ProductID: product, BranchID: branchB})
	assert.Equal(t, domain.KindPermissionDenied, domain.KindOf(err))
	_, err = f.query.ListLedger(ctx, actor, inventory.LedgerQuery{ProductID: product, BranchID: "branch-other"})
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

// fakeCache caché en memoria con generación por clave.
type fakeCache struct {
	mu          sync.Mutex
	data        map[inventory.LevelKey]cachedLevels
	gens        map[inventory.LevelKey]int64
	invalidated []inventory.LevelKey
	failGet     bool
}

type cachedLevels struct {
	gen    int64
	levels dto.StockLevelsDTO
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[inventory.LevelKey]cachedLevels{}, gens: map[inventory.LevelKey]int64{}}
}

func (c *fakeCache) Get(_ context.Context, k inventory.LevelKey) (*dto.StockLevelsDTO, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, 0, false, errors.New("redis caído")
	}
	gen := c.gens[k]
	v, ok := c.data[k]
	if !ok || v.gen != gen {
		return nil, gen, false, nil
	}
	return &v.levels, gen, true, nil
}

func (c *fakeCache) Set(_ context.Context, k inventory.LevelKey, gen int64, v *dto.StockLevelsDTO) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[k] = cachedLevels{gen: gen, levels: *v}
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, keys ...inventory.LevelKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.gens[k]++
		delete(c.data, k)
		c.invalidated = append(c.invalidated, k)
	}
	return nil
}

func TestLevelCache_LecturaEInvalidacion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cache := newFakeCache()
	log := logger.Nop()
	ledger := inventory.NewLedgerUseCase(f.store, f.store.Branches(), f.store.Products(), audit.NewRecorder(log), cache, log)
	query := inventory.NewQueryUseCase(f.store.Stock(), f.store.Lots(), f.store.Ledger(), f.store.Branches(), f.store.Products(), cache, 20, 100, log)
	key := inventory.LevelKey{TenantID: tenant, BranchID: branchA, ProductID: product}

	_, err := ledger.Receive(ctx, actor, inventory.ReceiveInput{BranchID: branchA, ProductID: product, Qty: 4})
	require.NoError(t, err)
	assert.Equal(t, []inventory.LevelKey{key}, cache.invalidated)

	lv, err := query.GetLevels(ctx, actor, branchA, product)
	require.NoError(t, err)
	assert.Equal(t, 4, lv.QtyOnHand)
	assert.Contains(t, cache.data, key)

	_, err = ledger.Consume(ctx, actor, inventory.ConsumeInput{BranchID: branchA, ProductID: product, Qty: 1})
	require.NoError(t, err)
	assert.NotContains(t, cache.data, key)

	// Un fallo de caché degrada a lectura directa y no se cachea.
	cache.failGet = true
	lv, err = query.GetLevels(ctx, actor, branchA, product)
	require.NoError(t, err)
	assert.Equal(t, 3, lv.QtyOnHand)
	assert.NotContains(t, cache.data, key)
}
