package transfer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/Inventario-stock/internal/application/audit"
	"github.com/jhoicas/Inventario-stock/internal/application/dto"
	"github.com/jhoicas/Inventario-stock/internal/application/inventory"
	"github.com/jhoicas/Inventario-stock/internal/domain"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/internal/domain/repository"
	"github.com/jhoicas/Inventario-stock/pkg/logger"
)

// UseCase motor de traslados entre sucursales. Cada transición corre en una transacción SERIALIZABLE
// que incluye los movimientos de stock de todos los ítems y la actualización del traslado.
type UseCase struct {
	txRunner     repository.TxRunner
	transferRepo repository.StockTransferRepository
	branchRepo   repository.BranchRepository
	productRepo  repository.ProductRepository
	ledger       *inventory.LedgerUseCase
	audit        *audit.Recorder
	locker       Locker
	numbering    NumberingConfig
	log          *logger.Logger

	defaultPageSize int
	maxPageSize     int

	now    func() time.Time
	jitter func() int
}

// Deps dependencias del caso de uso.
type Deps struct {
	TxRunner     repository.TxRunner
	TransferRepo repository.StockTransferRepository
	BranchRepo   repository.BranchRepository
	ProductRepo  repository.ProductRepository
	Ledger       *inventory.LedgerUseCase
	Audit        *audit.Recorder
	// Locker opcional; nil = NoopLocker.
	Locker    Locker
	Numbering NumberingConfig
	// Tamaños de página del listado; 0 = 20 / 100.
	DefaultPageSize int
	MaxPageSize     int
}

// NewUseCase construye el motor de traslados.
func NewUseCase(d Deps, log *logger.Logger) *UseCase {
	if d.Locker == nil {
		d.Locker = NoopLocker{}
	}
	if d.DefaultPageSize <= 0 {
		d.DefaultPageSize = 20
	}
	if d.MaxPageSize < d.DefaultPageSize {
		d.MaxPageSize = max(100, d.DefaultPageSize)
	}
	return &UseCase{
		txRunner:        d.TxRunner,
		transferRepo:    d.TransferRepo,
		branchRepo:      d.BranchRepo,
		productRepo:     d.ProductRepo,
		ledger:          d.Ledger,
		audit:           d.Audit,
		locker:          d.Locker,
		numbering:       d.Numbering.withDefaults(),
		log:             log.Component("transfer"),
		defaultPageSize: d.DefaultPageSize,
		maxPageSize:     d.MaxPageSize,
		now:             time.Now,
		jitter:          defaultJitter,
	}
}

// SetClock reemplaza la fuente de tiempo (tests).
func (uc *UseCase) SetClock(now func() time.Time) { uc.now = now }

// SetJitter reemplaza el generador de jitter de numeración (tests).
func (uc *UseCase) SetJitter(fn func() int) { uc.jitter = fn }

// CreateItemInput producto y cantidad solicitada.
type CreateItemInput struct {
	ProductID string
	Qty       int
}

// CreateInput solicitud de traslado (la hace un miembro de la sucursal destino).
type CreateInput struct {
	SourceBranchID      string
	DestinationBranchID string
	Notes               *string
	Items               []CreateItemInput
}

// Create crea el traslado en REQUESTED con un número TRF-{año}-{secuencia}.
func (uc *UseCase) Create(ctx context.Context, actor entity.Actor, in CreateInput) (*entity.StockTransfer, error) {
	if in.SourceBranchID == "" || in.DestinationBranchID == "" {
		return nil, domain.Validation("sourceBranchId and destinationBranchId are required")
	}
	if in.SourceBranchID == in.DestinationBranchID {
		return nil, domain.Validation("source and destination branches must differ")
	}
	if len(in.Items) == 0 {
		return nil, domain.Validation("at least one item is required")
	}
	seen := make(map[string]bool, len(in.Items))
	ids := make([]string, 0, len(in.Items))
	for _, it := range in.Items {
		if it.ProductID == "" {
			return nil, domain.Validation("productId is required")
		}
		if it.Qty <= 0 {
			return nil, domain.Validation("qty for product %s must be greater than zero", it.ProductID)
		}
		if seen[it.ProductID] {
			return nil, domain.Validation("product %s appears more than once", it.ProductID)
		}
		seen[it.ProductID] = true
		ids = append(ids, it.ProductID)
	}

	for _, id := range []string{in.SourceBranchID, in.DestinationBranchID} {
		b, err := uc.branchRepo.GetByID(ctx, actor.TenantID, id)
		if err != nil {
			return nil, fmt.Errorf("get branch: %w", err)
		}
		if b == nil {
			return nil, domain.NotFound("branch %s not found", id)
		}
	}
	products, err := uc.productRepo.ListByIDs(ctx, actor.TenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if len(products) != len(ids) {
		found := make(map[string]bool, len(products))
		for _, p := range products {
			found[p.ID] = true
		}
		var missing []string
		for _, id := range ids {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, domain.Validation("unknown products: %s", strings.Join(missing, ", ")).
			WithDetail("missingProductIds", missing)
	}
	if err := uc.requireMember(ctx, actor, in.DestinationBranchID); err != nil {
		return nil, err
	}

	var created *entity.StockTransfer
	err = retryOnDuplicate(ctx, uc.numbering.Attempts, uc.numbering.Backoff, func(attempt int) error {
		return uc.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
			now := uc.now()
			number, err := uc.nextNumber(ctx, repos, actor.TenantID, now)
			if err != nil {
				return err
			}
			t := &entity.StockTransfer{
				ID:                  uuid.New().String(),
				TenantID:            actor.TenantID,
				TransferNumber:      number,
				SourceBranchID:      in.SourceBranchID,
				DestinationBranchID: in.DestinationBranchID,
				Status:              entity.TransferRequested,
				RequestedByUserID:   actor.UserID,
				RequestNotes:        in.Notes,
				CreatedAt:           now,
				UpdatedAt:           now,
			}
			for _, it := range in.Items {
				t.Items = append(t.Items, entity.StockTransferItem{
					ID:           uuid.New().String(),
					TransferID:   t.ID,
					ProductID:    it.ProductID,
					QtyRequested: it.Qty,
					CreatedAt:    now,
					UpdatedAt:    now,
				})
			}
			if err := repos.Transfers().Create(ctx, t); err != nil {
				if attempt < uc.numbering.Attempts {
					uc.log.Debug().Str("transfer_number", number).Int("attempt", attempt).Msg("número de traslado en uso, reintentando")
				}
				return err
			}
			uc.audit.Record(ctx, repos, actor, audit.Change{
				EntityType: entity.AuditEntityTransfer, EntityID: t.ID, Action: "CREATE", After: *t,
			})
			created = t
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	uc.logTransition(created, "", "traslado creado")
	return created, nil
}

// ReviewDecision decisión de la sucursal origen.
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionReject  ReviewDecision = "reject"
)

// ReviewItemInput cantidad aprobada explícita para un ítem.
type ReviewItemInput struct {
	ItemID      string
	QtyApproved int
}

// ReviewInput revisión del traslado. Los ítems no listados se aprueban por lo solicitado.
type ReviewInput struct {
	Decision ReviewDecision
	Notes    *string
	Items    []ReviewItemInput
}

// Review aprueba (con cantidades por ítem) o rechaza un traslado REQUESTED.
func (uc *UseCase) Review(ctx context.Context, actor entity.Actor, transferID string, in ReviewInput) (*entity.StockTransfer, error) {
	if in.Decision != DecisionApprove && in.Decision != DecisionReject {
		return nil, domain.Validation("decision must be %q or %q", DecisionApprove, DecisionReject)
	}
	overrides := make(map[string]int, len(in.Items))
	for _, it := range in.Items {
		if _, dup := overrides[it.ItemID]; dup {
			return nil, domain.Validation("item %s appears more than once", it.ItemID)
		}
		if it.QtyApproved < 0 {
			return nil, domain.Validation("qtyApproved for item %s must not be negative", it.ItemID)
		}
		overrides[it.ItemID] = it.QtyApproved
	}

	return uc.transition(ctx, actor, transferID, sourceMember, func(ctx context.Context, repos repository.Repositories, t *entity.StockTransfer) error {
		if t.Status != entity.TransferRequested {
			return domain.Conflict("Only requested transfers can be reviewed (status %s)", t.Status)
		}
		now := uc.now()
		t.ReviewedByUserID = &actor.UserID
		t.ReviewNotes = in.Notes
		t.ReviewedAt = &now
		t.UpdatedAt = now

		if in.Decision == DecisionReject {
			t.Status = entity.TransferRejected
			return nil
		}
		for id := range overrides {
			if t.Item(id) == nil {
				return domain.Validation("item %s does not belong to transfer %s", id, t.TransferNumber)
			}
		}
		total := 0
		for i := range t.Items {
			it := &t.Items[i]
			qty := it.QtyRequested
			if v, ok := overrides[it.ID]; ok {
				if v > it.QtyRequested {
					return domain.Validation("qtyApproved for item %s exceeds qtyRequested (%d)", it.ID, it.QtyRequested)
				}
				qty = v
			}
			it.QtyApproved = &qty
			it.UpdatedAt = now
			total += qty
		}
		if total == 0 {
			return domain.Validation("approve at least one unit or reject the transfer")
		}
		t.Status = entity.TransferApproved
		return nil
	})
}

// Cancel cancela un traslado REQUESTED. Puede hacerlo quien lo solicitó o un miembro del destino.
func (uc *UseCase) Cancel(ctx context.Context, actor entity.Actor, transferID string) (*entity.StockTransfer, error) {
	return uc.transition(ctx, actor, transferID, requesterOrDestinationMember, func(_ context.Context, _ repository.Repositories, t *entity.StockTransfer) error {
		if t.Status != entity.TransferRequested {
			return domain.Conflict("Only requested transfers can be cancelled (status %s)", t.Status)
		}
		t.Status = entity.TransferCancelled
		t.UpdatedAt = uc.now()
		return nil
	})
}

// Get devuelve el traslado si el usuario es miembro de la sucursal origen o destino.
func (uc *UseCase) Get(ctx context.Context, actor entity.Actor, transferID string) (*entity.StockTransfer, error) {
	t, err := uc.load(ctx, actor, transferID)
	if err != nil {
		return nil, err
	}
	if err := uc.authorize(ctx, actor, t, eitherMember); err != nil {
		return nil, err
	}
	return t, nil
}

// ListQuery filtros del listado de traslados.
type ListQuery struct {
	Statuses  []entity.TransferStatus
	BranchID  string
	Direction string
	Page      dto.CursorPageRequest
}

// ListResult página de traslados.
type ListResult struct {
	Items    []*entity.StockTransfer
	PageInfo dto.CursorPage
}

// List traslados del tenant, más recientes primero, paginados por cursor (ID del último traslado).
// Con BranchID exige membresía en esa sucursal.
func (uc *UseCase) List(ctx context.Context, actor entity.Actor, q ListQuery) (*ListResult, error) {
	for _, s := range q.Statuses {
		if !s.Valid() {
			return nil, domain.Validation("unknown transfer status %q", s)
		}
	}
	switch q.Direction {
	case "", repository.DirectionInbound, repository.DirectionOutbound:
	default:
		return nil, domain.Validation("direction must be %q or %q", repository.DirectionInbound, repository.DirectionOutbound)
	}
	if q.Direction != "" && q.BranchID == "" {
		return nil, domain.Validation("direction requires branchId")
	}
	if q.BranchID != "" {
		b, err := uc.branchRepo.GetByID(ctx, actor.TenantID, q.BranchID)
		if err != nil {
			return nil, fmt.Errorf("get branch: %w", err)
		}
		if b == nil {
			return nil, domain.NotFound("branch %s not found", q.BranchID)
		}
		if err := uc.requireMember(ctx, actor, q.BranchID); err != nil {
			return nil, err
		}
	}

	page := q.Page
	page.Normalize(uc.defaultPageSize, uc.maxPageSize)
	rows, err := uc.transferRepo.List(ctx, repository.TransferFilter{
		TenantID:  actor.TenantID,
		Statuses:  q.Statuses,
		BranchID:  q.BranchID,
		Direction: q.Direction,
		Cursor:    page.Cursor,
		Limit:     page.Limit + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	res := &ListResult{PageInfo: dto.CursorPage{Limit: page.Limit}}
	if len(rows) > page.Limit {
		rows = rows[:page.Limit]
		res.PageInfo.HasMore = true
		res.PageInfo.NextCursor = rows[len(rows)-1].ID
	}
	res.Items = rows
	return res, nil
}

// --- helpers ---

type scope int

const (
	sourceMember scope = iota
	destinationMember
	requesterOrDestinationMember
	eitherMember
)

// transition carga el traslado, valida alcance, toma el lock y aplica fn sobre la fila bloqueada
// dentro de una transacción. El traslado actualizado se persiste y audita en la misma transacción.
func (uc *UseCase) transition(
	ctx context.Context,
	actor entity.Actor,
	transferID string,
	sc scope,
	fn func(ctx context.Context, repos repository.Repositories, t *entity.StockTransfer) error,
) (*entity.StockTransfer, error) {
	current, err := uc.load(ctx, actor, transferID)
	if err != nil {
		return nil, err
	}
	if err := uc.authorize(ctx, actor, current, sc); err != nil {
		return nil, err
	}
	unlock, err := uc.lock(ctx, actor.TenantID, transferID)
	if err != nil {
		return nil, err
	}
	defer unlock(context.WithoutCancel(ctx))

	var (
		updated    *entity.StockTransfer
		fromStatus entity.TransferStatus
	)
	err = uc.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		t, err := repos.Transfers().GetForUpdate(ctx, actor.TenantID, transferID)
		if err != nil {
			return fmt.Errorf("lock transfer: %w", err)
		}
		if t == nil {
			return domain.NotFound("transfer %s not found", transferID)
		}
		before := cloneForAudit(t)
		fromStatus = t.Status
		if err := fn(ctx, repos, t); err != nil {
			return err
		}
		if err := repos.Transfers().Update(ctx, t); err != nil {
			return fmt.Errorf("update transfer: %w", err)
		}
		uc.audit.Record(ctx, repos, actor, audit.Change{
			EntityType: entity.AuditEntityTransfer, EntityID: t.ID, Action: string(t.Status), Before: before, After: *t,
		})
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.logTransition(updated, fromStatus, "transición de traslado")
	return updated, nil
}

func (uc *UseCase) load(ctx context.Context, actor entity.Actor, transferID string) (*entity.StockTransfer, error) {
	if transferID == "" {
		return nil, domain.Validation("transfer id is required")
	}
	t, err := uc.transferRepo.GetByID(ctx, actor.TenantID, transferID)
	if err != nil {
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	if t == nil {
		return nil, domain.NotFound("transfer %s not found", transferID)
	}
	return t, nil
}

func (uc *UseCase) authorize(ctx context.Context, actor entity.Actor, t *entity.StockTransfer, sc scope) error {
	switch sc {
	case sourceMember:
		return uc.requireMember(ctx, actor, t.SourceBranchID)
	case destinationMember:
		return uc.requireMember(ctx, actor, t.DestinationBranchID)
	case requesterOrDestinationMember:
		if t.RequestedByUserID == actor.UserID {
			return nil
		}
		return uc.requireMember(ctx, actor, t.DestinationBranchID)
	default:
		ok, err := uc.branchRepo.IsMember(ctx, actor.TenantID, t.SourceBranchID, actor.UserID)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if ok {
			return nil
		}
		return uc.requireMember(ctx, actor, t.DestinationBranchID)
	}
}

func (uc *UseCase) requireMember(ctx context.Context, actor entity.Actor, branchID string) error {
	ok, err := uc.branchRepo.IsMember(ctx, actor.TenantID, branchID, actor.UserID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return domain.PermissionDenied("user is not a member of branch %s", branchID)
	}
	return nil
}

func (uc *UseCase) lock(ctx context.Context, tenantID, transferID string) (func(context.Context), error) {
	unlock, err := uc.locker.Lock(ctx, lockKey(tenantID, transferID))
	if err == nil {
		return unlock, nil
	}
	if domain.KindOf(err) == domain.KindConflict {
		return nil, err
	}
	uc.log.Warn().Err(err).Str("transfer_id", transferID).Msg("lock distribuido no disponible, se continúa sin él")
	return func(context.Context) {}, nil
}

func (uc *UseCase) nextNumber(ctx context.Context, repos repository.Repositories, tenantID string, now time.Time) (string, error) {
	year := now.UTC().Year()
	current, err := repos.Transfers().MaxTransferNumber(ctx, tenantID, YearPrefix(uc.numbering.Prefix, year))
	if err != nil {
		return "", fmt.Errorf("max transfer number: %w", err)
	}
	return NextTransferNumber(current, uc.numbering.Prefix, year, uc.jitter()), nil
}

func (uc *UseCase) logTransition(t *entity.StockTransfer, from entity.TransferStatus, msg string) {
	ev := uc.log.Info().
		Str("tenant_id", t.TenantID).
		Str("transfer_id", t.ID).
		Str("transfer_number", t.TransferNumber).
		Str("status", string(t.Status))
	if from != "" {
		ev = ev.Str("from_status", string(from))
	}
	ev.Msg(msg)
}

func cloneForAudit(t *entity.StockTransfer) entity.StockTransfer {
	c := *t
	c.Items = make([]entity.StockTransferItem, len(t.Items))
	copy(c.Items, t.Items)
	for i := range c.Items {
		if v := t.Items[i].QtyApproved; v != nil {
			q := *v
			c.Items[i].QtyApproved = &q
		}
	}
	return c
}

func levelKeys(tenantID, branchID string, items []entity.StockTransferItem) []inventory.LevelKey {
	keys := make([]inventory.LevelKey, 0, len(items))
	for _, it := range items {
		keys = append(keys, inventory.LevelKey{TenantID: tenantID, BranchID: branchID, ProductID: it.ProductID})
	}
	return keys
}
