package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/Inventario-stock/internal/application/audit"
	"github.com/jhoicas/Inventario-stock/internal/domain"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/internal/domain/inventory"
	"github.com/jhoicas/Inventario-stock/internal/domain/repository"
	"github.com/jhoicas/Inventario-stock/pkg/logger"
)

// LedgerUseCase motor de stock FIFO: recepción, consumo, ajuste y restauración de lotes.
// Cada operación pública corre en una única transacción SERIALIZABLE (TxRunner.Run) que escribe
// lotes, libro y agregado juntos; dos consumos concurrentes no pueden asignar la misma cantidad.
type LedgerUseCase struct {
	txRunner    repository.TxRunner
	branchRepo  repository.BranchRepository
	productRepo repository.ProductRepository
	audit       *audit.Recorder
	cache       LevelCache
	log         *logger.Logger
	now         func() time.Time
}

// NewLedgerUseCase construye el caso de uso. cache puede ser nil.
func NewLedgerUseCase(
	txRunner repository.TxRunner,
	branchRepo repository.BranchRepository,
	productRepo repository.ProductRepository,
	recorder *audit.Recorder,
	cache LevelCache,
	log *logger.Logger,
) *LedgerUseCase {
	if cache == nil {
		cache = NoopLevelCache{}
	}
	return &LedgerUseCase{
		txRunner:    txRunner,
		branchRepo:  branchRepo,
		productRepo: productRepo,
		audit:       recorder,
		cache:       cache,
		log:         log.Component("ledger"),
		now:         time.Now,
	}
}

// SetClock reemplaza la fuente de tiempo (tests).
func (uc *LedgerUseCase) SetClock(now func() time.Time) { uc.now = now }

// ReceiveInput entrada de stock: crea un lote nuevo.
type ReceiveInput struct {
	BranchID      string
	ProductID     string
	Qty           int
	UnitCostPence *int64
	SourceRef     *string
	Reason        *string
	OccurredAt    *time.Time
}

// ConsumeInput salida FIFO.
type ConsumeInput struct {
	BranchID   string
	ProductID  string
	Qty        int
	Reason     *string
	OccurredAt *time.Time
}

// AdjustInput ajuste con signo: positivo crea lote (requiere costo), negativo consume FIFO.
type AdjustInput struct {
	BranchID      string
	ProductID     string
	QtyDelta      int
	UnitCostPence *int64
	Reason        *string
	OccurredAt    *time.Time
}

// LotRestore cantidad a devolver a un lote original.
type LotRestore struct {
	LotID string
	Qty   int
}

// RestoreInput restauración de lotes por ID (primitiva de reverso).
type RestoreInput struct {
	BranchID   string
	Lots       []LotRestore
	Reason     *string
	OccurredAt *time.Time
}

// MovementResult resultado de cualquier movimiento del motor.
type MovementResult struct {
	// Lot lote creado (recepción o ajuste positivo).
	Lot *entity.StockLot
	// Allocations lotes tocados en orden (consumo, ajuste negativo o restauración).
	Allocations []entity.LotConsumption
	Entries     []*entity.StockLedgerEntry
	Stocks      []*entity.ProductStock
}

// Receive registra una entrada: lote nuevo + fila RECEIPT + agregado, en una transacción.
func (uc *LedgerUseCase) Receive(ctx context.Context, actor entity.Actor, in ReceiveInput) (*MovementResult, error) {
	if err := validateReceive(in.Qty, in.UnitCostPence); err != nil {
		return nil, err
	}
	if err := uc.checkScope(ctx, actor, in.BranchID, in.ProductID); err != nil {
		return nil, err
	}
	var res *MovementResult
	err := uc.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		res, err = uc.receiveInTx(ctx, repos, actor, in, entity.LedgerReceipt)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.Invalidate(ctx, LevelKey{actor.TenantID, in.BranchID, in.ProductID})
	return res, nil
}

// Consume descuenta qty en orden FIFO. Falla con Conflict("Insufficient stock") sin tocar lotes.
func (uc *LedgerUseCase) Consume(ctx context.Context, actor entity.Actor, in ConsumeInput) (*MovementResult, error) {
	if in.Qty <= 0 {
		return nil, domain.Validation("qty must be greater than zero")
	}
	if err := uc.checkScope(ctx, actor, in.BranchID, in.ProductID); err != nil {
		return nil, err
	}
	var res *MovementResult
	err := uc.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		res, err = uc.consumeInTx(ctx, repos, actor, in, entity.LedgerConsumption)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.Invalidate(ctx, LevelKey{actor.TenantID, in.BranchID, in.ProductID})
	return res, nil
}

// AdjustStock positivo como Receive (tipo ADJUSTMENT, costo obligatorio), negativo como Consume.
func (uc *LedgerUseCase) AdjustStock(ctx context.Context, actor entity.Actor, in AdjustInput) (*MovementResult, error) {
	if in.QtyDelta == 0 {
		return nil, domain.Validation("qtyDelta must not be zero")
	}
	if in.QtyDelta > 0 {
		if in.UnitCostPence == nil {
			return nil, domain.Validation("unitCostPence is required for positive adjustments")
		}
		if err := validateReceive(in.QtyDelta, in.UnitCostPence); err != nil {
			return nil, err
		}
	}
	if err := uc.checkScope(ctx, actor, in.BranchID, in.ProductID); err != nil {
		return nil, err
	}
	var res *MovementResult
	err := uc.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		if in.QtyDelta > 0 {
			res, err = uc.receiveInTx(ctx, repos, actor, ReceiveInput{
				BranchID:      in.BranchID,
				ProductID:     in.ProductID,
				Qty:           in.QtyDelta,
				UnitCostPence: in.UnitCostPence,
				Reason:        in.Reason,
				OccurredAt:    in.OccurredAt,
			}, entity.LedgerAdjustment)
			return err
		}
		res, err = uc.consumeInTx(ctx, repos, actor, ConsumeInput{
			BranchID:   in.BranchID,
			ProductID:  in.ProductID,
			Qty:        -in.QtyDelta,
			Reason:     in.Reason,
			OccurredAt: in.OccurredAt,
		}, entity.LedgerAdjustment)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.Invalidate(ctx, LevelKey{actor.TenantID, in.BranchID, in.ProductID})
	return res, nil
}

// RestoreLotQuantities devuelve cantidad a los lotes originales (por ID), preservando su costo.
func (uc *LedgerUseCase) RestoreLotQuantities(ctx context.Context, actor entity.Actor, in RestoreInput) (*MovementResult, error) {
	if err := validateRestore(in.Lots); err != nil {
		return nil, err
	}
	if err := uc.checkBranch(ctx, actor, in.BranchID); err != nil {
		return nil, err
	}
	var res *MovementResult
	err := uc.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		res, err = uc.RestoreInTx(ctx, repos, actor, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	keys := make([]LevelKey, 0, len(res.Stocks))
	for _, s := range res.Stocks {
		keys = append(keys, LevelKey{actor.TenantID, s.BranchID, s.ProductID})
	}
	uc.Invalidate(ctx, keys...)
	return res, nil
}

// ReceiveInTx recepción usando los repositorios proporcionados (misma transacción del caller).
// No revalida membresía: el caller ya autorizó la operación.
func (uc *LedgerUseCase) ReceiveInTx(ctx context.Context, repos repository.Repositories, actor entity.Actor, in ReceiveInput) (*MovementResult, error) {
	if err := validateReceive(in.Qty, in.UnitCostPence); err != nil {
		return nil, err
	}
	return uc.receiveInTx(ctx, repos, actor, in, entity.LedgerReceipt)
}

// ConsumeInTx consumo FIFO usando los repositorios proporcionados (misma transacción del caller).
func (uc *LedgerUseCase) ConsumeInTx(ctx context.Context, repos repository.Repositories, actor entity.Actor, in ConsumeInput) (*MovementResult, error) {
	if in.Qty <= 0 {
		return nil, domain.Validation("qty must be greater than zero")
	}
	return uc.consumeInTx(ctx, repos, actor, in, entity.LedgerConsumption)
}

// RestoreInTx restauración de lotes usando los repositorios proporcionados (misma transacción del caller).
func (uc *LedgerUseCase) RestoreInTx(ctx context.Context, repos repository.Repositories, actor entity.Actor, in RestoreInput) (*MovementResult, error) {
	if err := validateRestore(in.Lots); err != nil {
		return nil, err
	}
	now := uc.now()
	occurred := occurredAt(in.OccurredAt, now)

	merged := make([]entity.LotConsumption, 0, len(in.Lots))
	for _, l := range in.Lots {
		merged = append(merged, entity.LotConsumption{LotID: l.LotID, Qty: l.Qty})
	}
	merged = inventory.AggregateLots(merged)
	ids := make([]string, 0, len(merged))
	for _, l := range merged {
		ids = append(ids, l.LotID)
	}

	// Mismo orden de bloqueo que el consumo: agregados (por producto) y después lotes.
	found, err := repos.Lots().GetByIDs(ctx, actor.TenantID, in.BranchID, ids)
	if err != nil {
		return nil, err
	}
	if err := requireLots(ids, found); err != nil {
		return nil, err
	}
	var productOrder []string
	seenProduct := make(map[string]bool)
	for _, l := range found {
		if !seenProduct[l.ProductID] {
			seenProduct[l.ProductID] = true
			productOrder = append(productOrder, l.ProductID)
		}
	}
	sort.Strings(productOrder)
	stockBefore := make(map[string]*entity.ProductStock, len(productOrder))
	for _, productID := range productOrder {
		s, err := repos.Stock().GetForUpdate(ctx, actor.TenantID, in.BranchID, productID)
		if err != nil {
			return nil, err
		}
		stockBefore[productID] = s
	}

	locked, err := repos.Lots().GetByIDsForUpdate(ctx, actor.TenantID, in.BranchID, ids)
	if err != nil {
		return nil, err
	}
	if err := requireLots(ids, locked); err != nil {
		return nil, err
	}
	byID := make(map[string]*entity.StockLot, len(locked))
	for _, l := range locked {
		byID[l.ID] = l
	}

	res := &MovementResult{}
	perProduct := make(map[string]int)
	changes := make([]audit.Change, 0, 2*len(merged)+1)
	for _, r := range merged {
		lot := byID[r.LotID]
		if lot.QtyRemaining+r.Qty > lot.QtyReceived {
			return nil, domain.Conflict("restoring %d to lot %s would exceed its received quantity", r.Qty, lot.ID).
				WithDetail("lotId", lot.ID)
		}
		before := *lot
		if err := repos.Lots().AddRemaining(ctx, lot.ID, r.Qty); err != nil {
			return nil, err
		}
		lot.QtyRemaining += r.Qty
		lot.UpdatedAt = now

		entry := uc.newEntry(actor, lot.BranchID, lot.ProductID, &lot.ID, entity.LedgerReversal, r.Qty, in.Reason, occurred, now)
		if err := repos.Ledger().Append(ctx, entry); err != nil {
			return nil, err
		}
		res.Entries = append(res.Entries, entry)
		res.Allocations = append(res.Allocations, entity.LotConsumption{LotID: lot.ID, Qty: r.Qty, UnitCostPence: lot.UnitCostPence})

		perProduct[lot.ProductID] += r.Qty
		changes = append(changes,
			audit.Change{EntityType: entity.AuditEntityLot, EntityID: lot.ID, Action: "RESTORE", Before: before, After: *lot},
			audit.Change{EntityType: entity.AuditEntityLedger, EntityID: entry.ID, Action: "CREATE", After: *entry},
		)
	}

	for _, productID := range productOrder {
		before := stockBefore[productID]
		after, err := repos.Stock().AddOnHand(ctx, actor.TenantID, in.BranchID, productID, perProduct[productID])
		if err != nil {
			return nil, err
		}
		res.Stocks = append(res.Stocks, after)
		changes = append(changes, stockChange(before, after))
	}

	uc.audit.Record(ctx, repos, actor, changes...)
	uc.log.Debug().
		Str("tenant_id", actor.TenantID).
		Str("branch_id", in.BranchID).
		Int("lots", len(merged)).
		Msg("lotes restaurados")
	return res, nil
}

// requireLots Validation con todos los IDs que no aparecen en found.
func requireLots(ids []string, found []*entity.StockLot) error {
	have := make(map[string]bool, len(found))
	for _, l := range found {
		have[l.ID] = true
	}
	var missing []string
	for _, id := range ids {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return domain.Validation("lots not found in branch: %s", strings.Join(missing, ", ")).
			WithDetail("missingLotIds", missing)
	}
	return nil
}

func (uc *LedgerUseCase) receiveInTx(ctx context.Context, repos repository.Repositories, actor entity.Actor, in ReceiveInput, kind entity.LedgerKind) (*MovementResult, error) {
	now := uc.now()
	occurred := occurredAt(in.OccurredAt, now)

	// Bloquea el agregado: punto de serialización por (tenant, sucursal, producto).
	before, err := repos.Stock().GetForUpdate(ctx, actor.TenantID, in.BranchID, in.ProductID)
	if err != nil {
		return nil, err
	}

	lot := &entity.StockLot{
		ID:            uuid.New().String(),
		TenantID:      actor.TenantID,
		BranchID:      in.BranchID,
		ProductID:     in.ProductID,
		QtyReceived:   in.Qty,
		QtyRemaining:  in.Qty,
		UnitCostPence: in.UnitCostPence,
		SourceRef:     in.SourceRef,
		ReceivedAt:    occurred,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := repos.Lots().Create(ctx, lot); err != nil {
		return nil, err
	}
	entry := uc.newEntry(actor, in.BranchID, in.ProductID, &lot.ID, kind, in.Qty, in.Reason, occurred, now)
	if err := repos.Ledger().Append(ctx, entry); err != nil {
		return nil, err
	}
	after, err := repos.Stock().AddOnHand(ctx, actor.TenantID, in.BranchID, in.ProductID, in.Qty)
	if err != nil {
		return nil, err
	}

	uc.audit.Record(ctx, repos, actor,
		audit.Change{EntityType: entity.AuditEntityLot, EntityID: lot.ID, Action: "CREATE", After: *lot},
		audit.Change{EntityType: entity.AuditEntityLedger, EntityID: entry.ID, Action: "CREATE", After: *entry},
		stockChange(before, after),
	)
	uc.log.Debug().
		Str("tenant_id", actor.TenantID).
		Str("branch_id", in.BranchID).
		Str("product_id", in.ProductID).
		Str("kind", string(kind)).
		Int("qty", in.Qty).
		Msg("lote creado")

	return &MovementResult{
		Lot:     lot,
		Entries: []*entity.StockLedgerEntry{entry},
		Stocks:  []*entity.ProductStock{after},
	}, nil
}

func (uc *LedgerUseCase) consumeInTx(ctx context.Context, repos repository.Repositories, actor entity.Actor, in ConsumeInput, kind entity.LedgerKind) (*MovementResult, error) {
	now := uc.now()
	occurred := occurredAt(in.OccurredAt, now)

	// 1. Verificación previa contra el agregado: falla antes de tocar cualquier lote.
	before, err := repos.Stock().GetForUpdate(ctx, actor.TenantID, in.BranchID, in.ProductID)
	if err != nil {
		return nil, err
	}
	if in.Qty > before.QtyOnHand {
		return nil, domain.InsufficientStock(in.Qty, before.QtyOnHand)
	}

	// 2-3. Lotes abiertos en orden FIFO y plan de consumo.
	lots, err := repos.Lots().ListOpenForUpdate(ctx, actor.TenantID, in.BranchID, in.ProductID)
	if err != nil {
		return nil, err
	}
	allocs, short := inventory.AllocateFIFO(lots, in.Qty)
	if short > 0 {
		// 5. Respaldo: el agregado decía que alcanzaba pero los lotes no.
		uc.log.Error().
			Str("tenant_id", actor.TenantID).
			Str("branch_id", in.BranchID).
			Str("product_id", in.ProductID).
			Int("qty_on_hand", before.QtyOnHand).
			Int("shortfall", short).
			Msg("agregado y lotes desincronizados")
		return nil, domain.InsufficientStock(in.Qty, in.Qty-short)
	}

	res := &MovementResult{Allocations: allocs}
	changes := make([]audit.Change, 0, 2*len(allocs)+1)
	for _, a := range allocs {
		if err := repos.Lots().AddRemaining(ctx, a.LotID, -a.Qty); err != nil {
			return nil, err
		}
		lotID := a.LotID
		entry := uc.newEntry(actor, in.BranchID, in.ProductID, &lotID, kind, -a.Qty, in.Reason, occurred, now)
		if err := repos.Ledger().Append(ctx, entry); err != nil {
			return nil, err
		}
		res.Entries = append(res.Entries, entry)
		changes = append(changes,
			audit.Change{EntityType: entity.AuditEntityLot, EntityID: a.LotID, Action: "CONSUME", After: a},
			audit.Change{EntityType: entity.AuditEntityLedger, EntityID: entry.ID, Action: "CREATE", After: *entry},
		)
	}

	// 4. Un solo decremento del agregado.
	after, err := repos.Stock().AddOnHand(ctx, actor.TenantID, in.BranchID, in.ProductID, -in.Qty)
	if err != nil {
		return nil, err
	}
	res.Stocks = []*entity.ProductStock{after}
	changes = append(changes, stockChange(before, after))

	uc.audit.Record(ctx, repos, actor, changes...)
	uc.log.Debug().
		Str("tenant_id", actor.TenantID).
		Str("branch_id", in.BranchID).
		Str("product_id", in.ProductID).
		Str("kind", string(kind)).
		Int("qty", in.Qty).
		Int("lots", len(allocs)).
		Msg("stock consumido")
	return res, nil
}

// Invalidate borra de la caché los niveles tocados; un fallo solo se registra.
func (uc *LedgerUseCase) Invalidate(ctx context.Context, keys ...LevelKey) {
	if len(keys) == 0 {
		return
	}
	if err := uc.cache.Invalidate(ctx, keys...); err != nil {
		uc.log.Warn().Err(err).Int("keys", len(keys)).Msg("no se pudo invalidar la caché de niveles")
	}
}

// checkScope valida sucursal y producto del tenant y la membresía del usuario en la sucursal.
func (uc *LedgerUseCase) checkScope(ctx context.Context, actor entity.Actor, branchID, productID string) error {
	if branchID == "" || productID == "" {
		return domain.Validation("branchId and productId are required")
	}
	product, err := uc.productRepo.GetByID(ctx, actor.TenantID, productID)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return domain.NotFound("product %s not found", productID)
	}
	return uc.checkBranch(ctx, actor, branchID)
}

func (uc *LedgerUseCase) checkBranch(ctx context.Context, actor entity.Actor, branchID string) error {
	if branchID == "" {
		return domain.Validation("branchId is required")
	}
	branch, err := uc.branchRepo.GetByID(ctx, actor.TenantID, branchID)
	if err != nil {
		return fmt.Errorf("get branch: %w", err)
	}
	if branch == nil {
		return domain.NotFound("branch %s not found", branchID)
	}
	ok, err := uc.branchRepo.IsMember(ctx, actor.TenantID, branchID, actor.UserID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return domain.PermissionDenied("user is not a member of branch %s", branchID)
	}
	return nil
}

func (uc *LedgerUseCase) newEntry(actor entity.Actor, branchID, productID string, lotID *string, kind entity.LedgerKind, delta int, reason *string, occurred, now time.Time) *entity.StockLedgerEntry {
	var actorID *string
	if actor.UserID != "" {
		id := actor.UserID
		actorID = &id
	}
	return &entity.StockLedgerEntry{
		ID:          uuid.New().String(),
		TenantID:    actor.TenantID,
		BranchID:    branchID,
		ProductID:   productID,
		LotID:       lotID,
		Kind:        kind,
		QtyDelta:    delta,
		Reason:      reason,
		ActorUserID: actorID,
		OccurredAt:  occurred,
		CreatedAt:   now,
	}
}

func validateReceive(qty int, unitCost *int64) error {
	if qty <= 0 {
		return domain.Validation("qty must be greater than zero")
	}
	if unitCost != nil && *unitCost < 0 {
		return domain.Validation("unitCostPence must not be negative")
	}
	return nil
}

func validateRestore(lots []LotRestore) error {
	if len(lots) == 0 {
		return domain.Validation("at least one lot is required")
	}
	for _, l := range lots {
		if l.LotID == "" {
			return domain.Validation("lotId is required")
		}
		if l.Qty <= 0 {
			return domain.Validation("qty for lot %s must be greater than zero", l.LotID)
		}
	}
	return nil
}

func occurredAt(v *time.Time, now time.Time) time.Time {
	if v != nil && !v.IsZero() {
		return *v
	}
	return now
}

func stockChange(before, after *entity.ProductStock) audit.Change {
	c := audit.Change{
		EntityType: entity.AuditEntityStock,
		EntityID:   after.BranchID + ":" + after.ProductID,
		Action:     "UPDATE",
		After:      *after,
	}
	if before != nil {
		c.Before = *before
	}
	return c
}
