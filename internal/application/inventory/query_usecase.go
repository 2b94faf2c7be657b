package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/Inventario-stock/internal/application/dto"
	"github.com/jhoicas/Inventario-stock/internal/domain"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/internal/domain/repository"
	"github.com/jhoicas/Inventario-stock/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// bulkConcurrency sucursales consultadas en paralelo por GetLevelsBulk.
const bulkConcurrency = 8

// QueryUseCase proyecciones de solo lectura sobre lotes, agregados y libro.
type QueryUseCase struct {
	stockRepo   repository.StockRepository
	lotRepo     repository.StockLotRepository
	ledgerRepo  repository.StockLedgerRepository
	branchRepo  repository.BranchRepository
	productRepo repository.ProductRepository
	cache       LevelCache
	log         *logger.Logger

	defaultPageSize int
	maxPageSize     int
}

// NewQueryUseCase construye el caso de uso. cache puede ser nil.
func NewQueryUseCase(
	stockRepo repository.StockRepository,
	lotRepo repository.StockLotRepository,
	ledgerRepo repository.StockLedgerRepository,
	branchRepo repository.BranchRepository,
	productRepo repository.ProductRepository,
	cache LevelCache,
	defaultPageSize, maxPageSize int,
	log *logger.Logger,
) *QueryUseCase {
	if cache == nil {
		cache = NoopLevelCache{}
	}
	if defaultPageSize <= 0 {
		defaultPageSize = 20
	}
	if maxPageSize < defaultPageSize {
		maxPageSize = defaultPageSize
	}
	return &QueryUseCase{
		stockRepo:       stockRepo,
		lotRepo:         lotRepo,
		ledgerRepo:      ledgerRepo,
		branchRepo:      branchRepo,
		productRepo:     productRepo,
		cache:           cache,
		log:             log.Component("stock_query"),
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// GetLevels agregado + lotes abiertos (FIFO) de un producto en una sucursal de la que el usuario es miembro.
func (uc *QueryUseCase) GetLevels(ctx context.Context, actor entity.Actor, branchID, productID string) (*dto.StockLevelsDTO, error) {
	if branchID == "" || productID == "" {
		return nil, domain.Validation("branchId and productId are required")
	}
	if err := uc.requireProduct(ctx, actor.TenantID, productID); err != nil {
		return nil, err
	}
	branch, err := uc.branchRepo.GetByID(ctx, actor.TenantID, branchID)
	if err != nil {
		return nil, fmt.Errorf("get branch: %w", err)
	}
	if branch == nil {
		return nil, domain.NotFound("branch %s not found", branchID)
	}
	ok, err := uc.branchRepo.IsMember(ctx, actor.TenantID, branchID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return nil, domain.PermissionDenied("user is not a member of branch %s", branchID)
	}
	return uc.levels(ctx, actor.TenantID, branch, productID)
}

// GetLevelsBulk niveles del producto en todas las sucursales activas del tenant, ordenados como ListActive.
func (uc *QueryUseCase) GetLevelsBulk(ctx context.Context, actor entity.Actor, productID string) ([]*dto.StockLevelsDTO, error) {
	if productID == "" {
		return nil, domain.Validation("productId is required")
	}
	if err := uc.requireProduct(ctx, actor.TenantID, productID); err != nil {
		return nil, err
	}
	branches, err := uc.branchRepo.ListActive(ctx, actor.TenantID)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}

	out := make([]*dto.StockLevelsDTO, len(branches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrency)
	for i, b := range branches {
		g.Go(func() error {
			lv, err := uc.levels(gctx, actor.TenantID, b, productID)
			if err != nil {
				return err
			}
			out[i] = lv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// LedgerQuery filtros de ListLedger.
type LedgerQuery struct {
	ProductID    string
	BranchID     string
	Kinds        []entity.LedgerKind
	MinQty       *int
	MaxQty       *int
	OccurredFrom *time.Time
	OccurredTo   *time.Time
	Ascending    bool
	Page         dto.CursorPageRequest
}

// ListLedger movimientos del producto paginados por cursor (ID de la última fila), más recientes primero por defecto.
// Con BranchID exige membresía en esa sucursal; sin él la lectura abarca todo el tenant, como GetLevelsBulk.
func (uc *QueryUseCase) ListLedger(ctx context.Context, actor entity.Actor, q LedgerQuery) (*dto.LedgerPageDTO, error) {
	if q.ProductID == "" {
		return nil, domain.Validation("productId is required")
	}
	for _, k := range q.Kinds {
		if !k.Valid() {
			return nil, domain.Validation("unknown ledger kind %q", k)
		}
	}
	if q.MinQty != nil && q.MaxQty != nil && *q.MinQty > *q.MaxQty {
		return nil, domain.Validation("minQty must not exceed maxQty")
	}
	if q.OccurredFrom != nil && q.OccurredTo != nil && q.OccurredFrom.After(*q.OccurredTo) {
		return nil, domain.Validation("occurredFrom must not be after occurredTo")
	}
	if err := uc.requireProduct(ctx, actor.TenantID, q.ProductID); err != nil {
		return nil, err
	}
	if q.BranchID != "" {
		b, err := uc.branchRepo.GetByID(ctx, actor.TenantID, q.BranchID)
		if err != nil {
			return nil, fmt.Errorf("get branch: %w", err)
		}
		if b == nil {
			return nil, domain.NotFound("branch %s not found", q.BranchID)
		}
		ok, err := uc.branchRepo.IsMember(ctx, actor.TenantID, q.BranchID, actor.UserID)
		if err != nil {
			return nil, fmt.Errorf("check membership: %w", err)
		}
		if !ok {
			return nil, domain.PermissionDenied("user is not a member of branch %s", q.BranchID)
		}
	}

	page := q.Page
	page.Normalize(uc.defaultPageSize, uc.maxPageSize)

	// Se pide una fila de más para saber si hay página siguiente.
	rows, err := uc.ledgerRepo.List(ctx, repository.LedgerFilter{
		TenantID:     actor.TenantID,
		ProductID:    q.ProductID,
		BranchID:     q.BranchID,
		Kinds:        q.Kinds,
		MinQty:       q.MinQty,
		MaxQty:       q.MaxQty,
		OccurredFrom: q.OccurredFrom,
		OccurredTo:   q.OccurredTo,
		Ascending:    q.Ascending,
		Cursor:       page.Cursor,
		Limit:        page.Limit + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}

	res := &dto.LedgerPageDTO{
		Items:    make([]dto.LedgerEntryDTO, 0, min(len(rows), page.Limit)),
		PageInfo: dto.CursorPage{Limit: page.Limit},
	}
	if len(rows) > page.Limit {
		rows = rows[:page.Limit]
		res.PageInfo.HasMore = true
		res.PageInfo.NextCursor = rows[len(rows)-1].ID
	}
	for _, e := range rows {
		res.Items = append(res.Items, ToLedgerEntryDTO(e))
	}
	return res, nil
}

func (uc *QueryUseCase) levels(ctx context.Context, tenantID string, branch *entity.Branch, productID string) (*dto.StockLevelsDTO, error) {
	key := LevelKey{TenantID: tenantID, BranchID: branch.ID, ProductID: productID}
	cached, gen, ok, cacheErr := uc.cache.Get(ctx, key)
	if cacheErr != nil {
		uc.log.Warn().Err(cacheErr).Str("branch_id", branch.ID).Str("product_id", productID).Msg("caché de niveles no disponible")
	} else if ok {
		cached.BranchName = branch.Name
		return cached, nil
	}

	stock, err := uc.stockRepo.Get(ctx, tenantID, branch.ID, productID)
	if err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	lots, err := uc.lotRepo.ListOpen(ctx, tenantID, branch.ID, productID)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}

	lv := &dto.StockLevelsDTO{
		BranchID:     branch.ID,
		BranchName:   branch.Name,
		ProductID:    productID,
		QtyOnHand:    stock.QtyOnHand,
		QtyAllocated: stock.QtyAllocated,
		Lots:         make([]dto.LotDTO, 0, len(lots)),
	}
	for _, l := range lots {
		lv.Lots = append(lv.Lots, dto.LotDTO{
			ID:            l.ID,
			QtyReceived:   l.QtyReceived,
			QtyRemaining:  l.QtyRemaining,
			UnitCostPence: l.UnitCostPence,
			SourceRef:     l.SourceRef,
			ReceivedAt:    l.ReceivedAt,
			CreatedAt:     l.CreatedAt,
		})
	}
	// Sin generación conocida no se cachea.
	if cacheErr != nil {
		return lv, nil
	}
	if err := uc.cache.Set(ctx, key, gen, lv); err != nil {
		uc.log.Warn().Err(err).Str("branch_id", branch.ID).Str("product_id", productID).Msg("no se pudo cachear niveles")
	}
	return lv, nil
}

func (uc *QueryUseCase) requireProduct(ctx context.Context, tenantID, productID string) error {
	p, err := uc.productRepo.GetByID(ctx, tenantID, productID)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if p == nil {
		return domain.NotFound("product %s not found", productID)
	}
	return nil
}

// ToLedgerEntryDTO fila del libro para respuestas.
func ToLedgerEntryDTO(e *entity.StockLedgerEntry) dto.LedgerEntryDTO {
	return dto.LedgerEntryDTO{
		ID:          e.ID,
		BranchID:    e.BranchID,
		ProductID:   e.ProductID,
		LotID:       e.LotID,
		Kind:        string(e.Kind),
		QtyDelta:    e.QtyDelta,
		Reason:      e.Reason,
		ActorUserID: e.ActorUserID,
		OccurredAt:  e.OccurredAt,
		CreatedAt:   e.CreatedAt,
	}
}

// ToMovementDTO resultado de un movimiento para respuestas.
func ToMovementDTO(r *MovementResult) dto.MovementResultDTO {
	out := dto.MovementResultDTO{
		Allocations:   ToLotConsumptionDTOs(r.Allocations),
		LedgerEntries: make([]dto.LedgerEntryDTO, 0, len(r.Entries)),
		Stocks:        make([]dto.StockDTO, 0, len(r.Stocks)),
	}
	if r.Lot != nil {
		out.Lot = &dto.LotDTO{
			ID:            r.Lot.ID,
			QtyReceived:   r.Lot.QtyReceived,
			QtyRemaining:  r.Lot.QtyRemaining,
			UnitCostPence: r.Lot.UnitCostPence,
			SourceRef:     r.Lot.SourceRef,
			ReceivedAt:    r.Lot.ReceivedAt,
			CreatedAt:     r.Lot.CreatedAt,
		}
	}
	for _, e := range r.Entries {
		out.LedgerEntries = append(out.LedgerEntries, ToLedgerEntryDTO(e))
	}
	for _, s := range r.Stocks {
		out.Stocks = append(out.Stocks, dto.StockDTO{
			BranchID:     s.BranchID,
			ProductID:    s.ProductID,
			QtyOnHand:    s.QtyOnHand,
			QtyAllocated: s.QtyAllocated,
			UpdatedAt:    s.UpdatedAt,
		})
	}
	return out
}

// ToLotConsumptionDTOs nunca devuelve nil (JSON []).
func ToLotConsumptionDTOs(lots []entity.LotConsumption) []dto.LotConsumptionDTO {
	out := make([]dto.LotConsumptionDTO, 0, len(lots))
	for _, l := range lots {
		out = append(out, dto.LotConsumptionDTO{LotID: l.LotID, Qty: l.Qty, UnitCostPence: l.UnitCostPence})
	}
	return out
}
