package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Inventario-stock/internal/application/audit"
	"github.com/jhoicas/Inventario-stock/internal/application/dto"
	"github.com/jhoicas/Inventario-stock/internal/application/inventory"
	"github.com/jhoicas/Inventario-stock/internal/application/transfer"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/Inventario-stock/internal/interfaces/http"
	"github.com/jhoicas/Inventario-stock/pkg/logger"
)

const (
	srcBranch = "branch-src"
	dstBranch = "branch-dst"
	productID = "product-1"
	srcUser   = "user-src"
	dstUser   = "user-dst"
)

type apiFixture struct {
	app   *fiber.App
	store *memory.Store
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	store.AddBranch(entity.Branch{ID: srcBranch, TenantID: testTenantID, Name: "Centro", IsActive: true})
	store.AddBranch(entity.Branch{ID: dstBranch, TenantID: testTenantID, Name: "Norte", IsActive: true})
	store.AddMember(testTenantID, srcBranch, srcUser)
	store.AddMember(testTenantID, dstBranch, dstUser)
	store.AddProduct(entity.Product{ID: productID, TenantID: testTenantID, SKU: "SKU-1", Name: "Café"})

	log := logger.Nop()
	rec := audit.NewRecorder(log)
	ledger := inventory.NewLedgerUseCase(store, store.Branches(), store.Products(), rec, nil, log)
	query := inventory.NewQueryUseCase(store.Stock(), store.Lots(), store.Ledger(), store.Branches(), store.Products(), nil, 20, 100, log)
	transfers := transfer.NewUseCase(transfer.Deps{
		TxRunner:     store,
		TransferRepo: store.Transfers(),
		BranchRepo:   store.Branches(),
		ProductRepo:  store.Products(),
		Ledger:       ledger,
		Audit:        rec,
		Numbering:    transfer.NumberingConfig{Prefix: "TRF", Attempts: 3, Backoff: time.Millisecond},
	}, log)

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	tick := func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	ledger.SetClock(tick)
	transfers.SetClock(tick)

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Ledger: ledger, Query: query, Transfers: transfers, JWTSecret: testJWTSecret, Logger: log,
	})
	return &apiFixture{app: app, store: store}
}

func (f *apiFixture) do(t *testing.T, method, path, user string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("Authorization", bearer(t, user, testTenantID))
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func cost(v int64) *int64 { return &v }

func TestHealth(t *testing.T) {
	f := newAPI(t)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "", nil, nil))
}

func TestStockAPI_RecibirConsumirYConsultar(t *testing.T) {
	f := newAPI(t)

	var rec dto.MovementResultDTO
	status := f.do(t, http.MethodPost, "/api/stock/receive", srcUser, dto.ReceiveStockRequest{
		BranchID: srcBranch, ProductID: productID, Qty: 100, UnitCostPence: cost(1200),
	}, &rec)
	require.Equal(t, http.StatusCreated, status)
	require.NotNil(t, rec.Lot)
	assert.Equal(t, 100, rec.Lot.QtyRemaining)
	require.Len(t, rec.Stocks, 1)
	assert.Equal(t, 100, rec.Stocks[0].QtyOnHand)

	var cons dto.MovementResultDTO
	status = f.do(t, http.MethodPost, "/api/stock/consume", srcUser, dto.ConsumeStockRequest{
		BranchID: srcBranch, ProductID: productID, Qty: 30,
	}, &cons)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, cons.Allocations, 1)
	assert.Equal(t, rec.Lot.ID, cons.Allocations[0].LotID)
	assert.Equal(t, 30, cons.Allocations[0].Qty)

	var lv dto.StockLevelsDTO
	status = f.do(t, http.MethodGet, "/api/stock/levels?branchId="+srcBranch+"&productId="+productID, srcUser, nil, &lv)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 70, lv.QtyOnHand)
	require.Len(t, lv.Lots, 1)

	var page dto.LedgerPageDTO
	status = f.do(t, http.MethodGet, "/api/stock/ledger?productId="+productID+"&limit=1", srcUser, nil, &page)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "CONSUMPTION", page.Items[0].Kind)
	assert.True(t, page.PageInfo.HasMore)
	assert.NotEmpty(t, page.PageInfo.NextCursor)
}

func TestStockAPI_MapeoDeErrores(t *testing.T) {
	f := newAPI(t)

	var errResp dto.ErrorResponse
	status := f.do(t, http.MethodPost, "/api/stock/consume", srcUser, dto.ConsumeStockRequest{
		BranchID: srcBranch, ProductID: productID, Qty: 5,
	}, &errResp)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INSUFFICIENT_STOCK", errResp.Code)
	assert.EqualValues(t, 5, errResp.Details["requested"])
	assert.EqualValues(t, 0, errResp.Details["available"])

	status = f.do(t, http.MethodPost, "/api/stock/receive", srcUser, dto.ReceiveStockRequest{
		BranchID: srcBranch, ProductID: productID, Qty: 0, UnitCostPence: cost(10),
	}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION", errResp.Code)

	status = f.do(t, http.MethodPost, "/api/stock/receive", srcUser, dto.ReceiveStockRequest{
		BranchID: srcBranch, ProductID: "no-existe", Qty: 1, UnitCostPence: cost(10),
	}, &errResp)
	assert.Equal(t, http.StatusNotFound, status)

	status = f.do(t, http.MethodPost, "/api/stock/receive", dstUser, dto.ReceiveStockRequest{
		BranchID: srcBranch, ProductID: productID, Qty: 1, UnitCostPence: cost(10),
	}, &errResp)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "PERMISSION_DENIED", errResp.Code)

	status = f.do(t, http.MethodGet, "/api/stock/ledger?productId="+productID+"&order=sideways", srcUser, nil, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)

	status = f.do(t, http.MethodGet, "/api/stock/levels?branchId="+srcBranch+"&productId="+productID, "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestTransferAPI_FlujoCompleto(t *testing.T) {
	f := newAPI(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/stock/receive", srcUser, dto.ReceiveStockRequest{
		BranchID: srcBranch, ProductID: productID, Qty: 50, UnitCostPence: cost(900),
	}, nil))

	var tr dto.TransferDTO
	status := f.do(t, http.MethodPost, "/api/transfers", dstUser, dto.CreateTransferRequest{
		SourceBranchID: srcBranch, DestinationBranchID: dstBranch,
		Items: []dto.CreateTransferItemRequest{{ProductID: productID, Qty: 20}},
	}, &tr)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "REQUESTED", tr.Status)
	assert.Regexp(t, `^TRF-2026-\d{4}$`, tr.TransferNumber)
	id := tr.ID

	status = f.do(t, http.MethodPost, "/api/transfers/"+id+"/review", srcUser, dto.ReviewTransferRequest{Decision: "approve"}, &tr)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "APPROVED", tr.Status)

	// El destino no puede enviar.
	var errResp dto.ErrorResponse
	status = f.do(t, http.MethodPost, "/api/transfers/"+id+"/ship", dstUser, nil, &errResp)
	assert.Equal(t, http.StatusForbidden, status)

	status = f.do(t, http.MethodPost, "/api/transfers/"+id+"/ship", srcUser, nil, &tr)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "IN_TRANSIT", tr.Status)
	require.Len(t, tr.Items, 1)
	require.Len(t, tr.Items[0].ShipmentBatches, 1)
	assert.Equal(t, int64(900), *tr.Items[0].AvgUnitCostPence)

	status = f.do(t, http.MethodPost, "/api/transfers/"+id+"/receive", dstUser, nil, &tr)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "COMPLETED", tr.Status)

	var lv dto.StockLevelsDTO
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/stock/levels?branchId="+dstBranch+"&productId="+productID, dstUser, nil, &lv))
	assert.Equal(t, 20, lv.QtyOnHand)

	var rev dto.TransferDTO
	status = f.do(t, http.MethodPost, "/api/transfers/"+id+"/reverse", dstUser, dto.ReverseTransferRequest{}, &rev)
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, rev.IsReversal)
	assert.Equal(t, id, *rev.ReversalOfID)

	status = f.do(t, http.MethodPost, "/api/transfers/"+id+"/reverse", dstUser, nil, &errResp)
	assert.Equal(t, http.StatusConflict, status)

	var page dto.TransferPageDTO
	status = f.do(t, http.MethodGet, "/api/transfers?branchId="+dstBranch+"&direction=inbound", dstUser, nil, &page)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, page.Items, 1)
	assert.Equal(t, id, page.Items[0].ID)

	status = f.do(t, http.MethodGet, "/api/transfers/"+id, dstUser, nil, &tr)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, rev.ID, *tr.ReversedByTransferID)
}

func TestTransferAPI_AuditoriaConCorrelacion(t *testing.T) {
	f := newAPI(t)
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(dto.ReceiveStockRequest{
		BranchID: srcBranch, ProductID: productID, Qty: 5, UnitCostPence: cost(100),
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/stock/receive", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, srcUser, testTenantID))
	req.Header.Set(apphttp.HeaderCorrelationID, "corr-audit")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	events := f.store.AuditEvents()
	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Equal(t, "corr-audit", ev.CorrelationID)
		assert.Equal(t, srcUser, ev.ActorUserID)
	}
}
