package cache_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/jhoicas/Inventario-stock/internal/application/audit"
	"github.com/jhoicas/Inventario-stock/internal/application/dto"
	"github.com/jhoicas/Inventario-stock/internal/application/inventory"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/internal/infrastructure/cache"
	"github.com/jhoicas/Inventario-stock/internal/infrastructure/memory"
	"github.com/jhoicas/Inventario-stock/pkg/logger"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKV struct {
	data    map[string]string
	ttls    map[string]time.Duration
	deleted []string
	err     error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) MGet(_ context.Context, keys ...string) *redis.SliceCmd {
	if f.err != nil {
		return redis.NewSliceResult(nil, f.err)
	}
	vals := make([]any, len(keys))
	for i, k := range keys {
		if v, ok := f.data[k]; ok {
			vals[i] = v
		}
	}
	return redis.NewSliceResult(vals, nil)
}

func (f *fakeKV) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func (f *fakeKV) Set(_ context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = string(value.([]byte))
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeKV) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	f.deleted = append(f.deleted, keys...)
	return redis.NewIntResult(int64(len(keys)), f.err)
}

func TestRedisLevelCache_SetGetInvalidate(t *testing.T) {
	kv := newFakeKV()
	c := cache.NewRedisLevelCache(kv, time.Minute)
	ctx := context.Background()
	key := inventory.LevelKey{TenantID: "t1", BranchID: "b1", ProductID: "p1"}

	_, gen, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, gen)

	cost := int64(1200)
	levels := &dto.StockLevelsDTO{
		BranchID: "b1", ProductID: "p1", QtyOnHand: 30,
		Lots: []dto.LotDTO{{ID: "l1", QtyReceived: 50, QtyRemaining: 30, UnitCostPence: &cost}},
	}
	require.NoError(t, c.Set(ctx, key, gen, levels))
	assert.Equal(t, time.Minute, kv.ttls["stock-levels:t1:b1:p1"])

	got, _, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 30, got.QtyOnHand)
	require.Len(t, got.Lots, 1)
	assert.Equal(t, int64(1200), *got.Lots[0].UnitCostPence)

	other := inventory.LevelKey{TenantID: "t1", BranchID: "b2", ProductID: "p1"}
	require.NoError(t, c.Invalidate(ctx, key, other))
	assert.Equal(t, []string{"stock-levels:t1:b1:p1", "stock-levels:t1:b2:p1"}, kv.deleted)
	assert.Equal(t, "1", kv.data["stock-levels-gen:t1:b1:p1"])
	_, gen, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), gen)
}

func TestRedisLevelCache_GeneracionAnteriorNoSeSirve(t *testing.T) {
	kv := newFakeKV()
	c := cache.NewRedisLevelCache(kv, time.Minute)
	ctx := context.Background()
	key := inventory.LevelKey{TenantID: "t1", BranchID: "b1", ProductID: "p1"}

	_, gen, _, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, key))
	// Escritura con la generación leída antes de la invalidación.
	require.NoError(t, c.Set(ctx, key, gen, &dto.StockLevelsDTO{QtyOnHand: 10}))

	_, cur, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, gen+1, cur)

	require.NoError(t, c.Set(ctx, key, cur, &dto.StockLevelsDTO{QtyOnHand: 3}))
	got, _, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.QtyOnHand)
}

// racingKV ejecuta beforeSet una vez justo antes de escribir, como un commit concurrente
// que cae entre la lectura de la base y el llenado de la caché.
type racingKV struct {
	*fakeKV
	beforeSet func()
}

func (r *racingKV) Set(ctx context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	if fn := r.beforeSet; fn != nil {
		r.beforeSet = nil
		fn()
	}
	return r.fakeKV.Set(ctx, key, value, exp)
}

func TestRedisLevelCache_ConsumoEntreLecturaYSet(t *testing.T) {
	const tenant, branch, product, user = "t1", "b1", "p1", "u1"
	ctx := context.Background()
	actor := entity.Actor{TenantID: tenant, UserID: user}

	store := memory.NewStore()
	store.AddBranch(entity.Branch{ID: branch, TenantID: tenant, Name: "Centro", IsActive: true})
	store.AddMember(tenant, branch, user)
	store.AddProduct(entity.Product{ID: product, TenantID: tenant, SKU: "SKU-1", Name: "Tornillo"})

	kv := &racingKV{fakeKV: newFakeKV()}
	levels := cache.NewRedisLevelCache(kv, time.Minute)
	log := logger.Nop()
	ledger := inventory.NewLedgerUseCase(store, store.Branches(), store.Products(), audit.NewRecorder(log), levels, log)
	query := inventory.NewQueryUseCase(store.Stock(), store.Lots(), store.Ledger(), store.Branches(), store.Products(), levels, 20, 100, log)

	_, err := ledger.Receive(ctx, actor, inventory.ReceiveInput{BranchID: branch, ProductID: product, Qty: 10})
	require.NoError(t, err)

	kv.beforeSet = func() {
		_, err := ledger.Consume(ctx, actor, inventory.ConsumeInput{BranchID: branch, ProductID: product, Qty: 7})
		require.NoError(t, err)
	}
	lv, err := query.GetLevels(ctx, actor, branch, product)
	require.NoError(t, err)
	assert.Equal(t, 10, lv.QtyOnHand)

	lv, err = query.GetLevels(ctx, actor, branch, product)
	require.NoError(t, err)
	assert.Equal(t, 3, lv.QtyOnHand)
	sum := 0
	for _, l := range lv.Lots {
		sum += l.QtyRemaining
	}
	assert.Equal(t, lv.QtyOnHand, sum)
}

func TestRedisLevelCache_Errores(t *testing.T) {
	kv := newFakeKV()
	c := cache.NewRedisLevelCache(kv, 0)
	ctx := context.Background()
	key := inventory.LevelKey{TenantID: "t", BranchID: "b", ProductID: "p"}

	kv.data[cache.LevelKey(key)] = "{no-json"
	_, _, _, err := c.Get(ctx, key)
	assert.Error(t, err)

	kv.err = errors.New("connection refused")
	_, _, ok, err := c.Get(ctx, key)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, c.Set(ctx, key, 0, &dto.StockLevelsDTO{}))
	assert.Error(t, c.Invalidate(ctx, key))

	assert.NoError(t, c.Invalidate(ctx))
	assert.NoError(t, c.Set(ctx, key, 0, nil))
}
