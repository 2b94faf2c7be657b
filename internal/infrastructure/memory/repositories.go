package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/jhoicas/Inventario-stock/internal/domain"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/internal/domain/inventory"
	"github.com/jhoicas/Inventario-stock/internal/domain/repository"
)

// --- Lotes ---

type lotRepo struct {
	s  *Store
	st *state
}

func (r *lotRepo) Create(ctx context.Context, lot *entity.StockLot) error {
	return r.s.write(ctx, r.st, func(st *state) error {
		if _, ok := st.lots[lot.ID]; ok {
			return domain.ErrDuplicate
		}
		c := *lot
		st.lots[lot.ID] = &c
		return nil
	})
}

func (r *lotRepo) ListOpen(_ context.Context, tenantID, branchID, productID string) ([]*entity.StockLot, error) {
	var out []*entity.StockLot
	err := r.s.read(r.st, func(st *state) error {
		out = collectLots(st, tenantID, branchID, productID, true)
		return nil
	})
	return out, err
}

func (r *lotRepo) ListOpenForUpdate(ctx context.Context, tenantID, branchID, productID string) ([]*entity.StockLot, error) {
	return r.ListOpen(ctx, tenantID, branchID, productID)
}

func (r *lotRepo) GetByIDsForUpdate(ctx context.Context, tenantID, branchID string, ids []string) ([]*entity.StockLot, error) {
	return r.GetByIDs(ctx, tenantID, branchID, ids)
}

func (r *lotRepo) GetByIDs(_ context.Context, tenantID, branchID string, ids []string) ([]*entity.StockLot, error) {
	var out []*entity.StockLot
	err := r.s.read(r.st, func(st *state) error {
		for _, id := range ids {
			l, ok := st.lots[id]
			if !ok || l.TenantID != tenantID || l.BranchID != branchID {
				continue
			}
			c := *l
			out = append(out, &c)
		}
		return nil
	})
	return out, err
}

func (r *lotRepo) AddRemaining(ctx context.Context, lotID string, delta int) error {
	return r.s.write(ctx, r.st, func(st *state) error {
		l, ok := st.lots[lotID]
		if !ok {
			return domain.ErrNotFound
		}
		next := l.QtyRemaining + delta
		// Mismo CHECK que la tabla: 0 <= qty_remaining <= qty_received.
		if next < 0 || next > l.QtyReceived {
			return domain.Conflict("lot %s quantity out of range", lotID)
		}
		l.QtyRemaining = next
		l.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func collectLots(st *state, tenantID, branchID, productID string, openOnly bool) []*entity.StockLot {
	var out []*entity.StockLot
	for _, l := range st.lots {
		if l.TenantID != tenantID || l.BranchID != branchID || l.ProductID != productID {
			continue
		}
		if openOnly && l.QtyRemaining <= 0 {
			continue
		}
		c := *l
		out = append(out, &c)
	}
	inventory.SortFIFO(out)
	return out
}

// --- Agregado ---

type stockRepo struct {
	s  *Store
	st *state
}

func (r *stockRepo) Get(_ context.Context, tenantID, branchID, productID string) (*entity.ProductStock, error) {
	var out *entity.ProductStock
	err := r.s.read(r.st, func(st *state) error {
		if ps, ok := st.stock[stockKey{tenantID, branchID, productID}]; ok {
			c := *ps
			out = &c
			return nil
		}
		out = &entity.ProductStock{TenantID: tenantID, BranchID: branchID, ProductID: productID}
		return nil
	})
	return out, err
}

func (r *stockRepo) GetForUpdate(ctx context.Context, tenantID, branchID, productID string) (*entity.ProductStock, error) {
	return r.Get(ctx, tenantID, branchID, productID)
}

func (r *stockRepo) AddOnHand(ctx context.Context, tenantID, branchID, productID string, delta int) (*entity.ProductStock, error) {
	var out *entity.ProductStock
	err := r.s.write(ctx, r.st, func(st *state) error {
		k := stockKey{tenantID, branchID, productID}
		ps, ok := st.stock[k]
		if !ok {
			ps = &entity.ProductStock{TenantID: tenantID, BranchID: branchID, ProductID: productID}
			st.stock[k] = ps
		}
		if ps.QtyOnHand+delta < 0 {
			return domain.Conflict("qty_on_hand would become negative")
		}
		ps.QtyOnHand += delta
		ps.UpdatedAt = time.Now().UTC()
		c := *ps
		out = &c
		return nil
	})
	return out, err
}

// --- Libro ---

type ledgerRepo struct {
	s  *Store
	st *state
}

func (r *ledgerRepo) Append(ctx context.Context, entry *entity.StockLedgerEntry) error {
	return r.s.write(ctx, r.st, func(st *state) error {
		c := *entry
		st.ledger = append(st.ledger, &c)
		return nil
	})
}

func (r *ledgerRepo) List(_ context.Context, f repository.LedgerFilter) ([]*entity.StockLedgerEntry, error) {
	var out []*entity.StockLedgerEntry
	err := r.s.read(r.st, func(st *state) error {
		var cursor *entity.StockLedgerEntry
		if f.Cursor != "" {
			for _, e := range st.ledger {
				if e.ID == f.Cursor && e.TenantID == f.TenantID {
					cursor = e
					break
				}
			}
			if cursor == nil {
				return domain.Validation("invalid cursor")
			}
		}

		var rows []*entity.StockLedgerEntry
		for _, e := range st.ledger {
			if matchesLedger(e, f) {
				rows = append(rows, e)
			}
		}
		slices.SortFunc(rows, func(a, b *entity.StockLedgerEntry) int {
			c := compareLedger(a, b)
			if !f.Ascending {
				c = -c
			}
			return c
		})
		for _, e := range rows {
			if cursor != nil {
				c := compareLedger(e, cursor)
				if (f.Ascending && c <= 0) || (!f.Ascending && c >= 0) {
					continue
				}
			}
			c := *e
			out = append(out, &c)
			if f.Limit > 0 && len(out) == f.Limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// compareLedger orden de paginación del libro: (CreatedAt, ID).
func compareLedger(a, b *entity.StockLedgerEntry) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func matchesLedger(e *entity.StockLedgerEntry, f repository.LedgerFilter) bool {
	if e.TenantID != f.TenantID {
		return false
	}
	if f.ProductID != "" && e.ProductID != f.ProductID {
		return false
	}
	if f.BranchID != "" && e.BranchID != f.BranchID {
		return false
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, e.Kind) {
		return false
	}
	if f.MinQty != nil && e.QtyDelta < *f.MinQty {
		return false
	}
	if f.MaxQty != nil && e.QtyDelta > *f.MaxQty {
		return false
	}
	if f.OccurredFrom != nil && e.OccurredAt.Before(*f.OccurredFrom) {
		return false
	}
	if f.OccurredTo != nil && e.OccurredAt.After(*f.OccurredTo) {
		return false
	}
	return true
}

// --- Traslados ---

type transferRepo struct {
	s  *Store
	st *state
}

func (r *transferRepo) Create(ctx context.Context, t *entity.StockTransfer) error {
	return r.s.write(ctx, r.st, func(st *state) error {
		for _, x := range st.transfers {
			if x.TenantID == t.TenantID && x.TransferNumber == t.TransferNumber {
				return domain.ErrDuplicate
			}
		}
		if _, ok := st.transfers[t.ID]; ok {
			return domain.ErrDuplicate
		}
		st.transfers[t.ID] = cloneTransfer(t)
		return nil
	})
}

func (r *transferRepo) GetByID(_ context.Context, tenantID, id string) (*entity.StockTransfer, error) {
	var out *entity.StockTransfer
	err := r.s.read(r.st, func(st *state) error {
		if t, ok := st.transfers[id]; ok && t.TenantID == tenantID {
			out = cloneTransfer(t)
		}
		return nil
	})
	return out, err
}

func (r *transferRepo) GetForUpdate(ctx context.Context, tenantID, id string) (*entity.StockTransfer, error) {
	return r.GetByID(ctx, tenantID, id)
}

func (r *transferRepo) Update(ctx context.Context, t *entity.StockTransfer) error {
	return r.s.write(ctx, r.st, func(st *state) error {
		cur, ok := st.transfers[t.ID]
		if !ok || cur.TenantID != t.TenantID {
			return domain.ErrNotFound
		}
		st.transfers[t.ID] = cloneTransfer(t)
		return nil
	})
}

func (r *transferRepo) MaxTransferNumber(_ context.Context, tenantID, prefix string) (string, error) {
	var max string
	err := r.s.read(r.st, func(st *state) error {
		for _, t := range st.transfers {
			if t.TenantID != tenantID || !strings.HasPrefix(t.TransferNumber, prefix) {
				continue
			}
			// Sufijo de ancho fijo (o mayor): comparar por longitud y luego lexicográficamente.
			if len(t.TransferNumber) > len(max) || (len(t.TransferNumber) == len(max) && t.TransferNumber > max) {
				max = t.TransferNumber
			}
		}
		return nil
	})
	return max, err
}

func (r *transferRepo) List(_ context.Context, f repository.TransferFilter) ([]*entity.StockTransfer, error) {
	var out []*entity.StockTransfer
	err := r.s.read(r.st, func(st *state) error {
		var cursor *entity.StockTransfer
		if f.Cursor != "" {
			c, ok := st.transfers[f.Cursor]
			if !ok || c.TenantID != f.TenantID {
				return domain.Validation("invalid cursor")
			}
			cursor = c
		}
		var rows []*entity.StockTransfer
		for _, t := range st.transfers {
			if matchesTransfer(t, f) {
				rows = append(rows, t)
			}
		}
		// Más recientes primero: (CreatedAt DESC, ID DESC).
		slices.SortFunc(rows, func(a, b *entity.StockTransfer) int { return -compareTransfer(a, b) })
		for _, t := range rows {
			if cursor != nil && compareTransfer(t, cursor) >= 0 {
				continue
			}
			out = append(out, cloneTransfer(t))
			if f.Limit > 0 && len(out) == f.Limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func compareTransfer(a, b *entity.StockTransfer) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func matchesTransfer(t *entity.StockTransfer, f repository.TransferFilter) bool {
	if t.TenantID != f.TenantID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, t.Status) {
		return false
	}
	if f.BranchID == "" {
		return true
	}
	switch f.Direction {
	case repository.DirectionInbound:
		return t.DestinationBranchID == f.BranchID
	case repository.DirectionOutbound:
		return t.SourceBranchID == f.BranchID
	default:
		return t.DestinationBranchID == f.BranchID || t.SourceBranchID == f.BranchID
	}
}

func cloneTransfer(t *entity.StockTransfer) *entity.StockTransfer {
	c := *t
	c.Items = make([]entity.StockTransferItem, len(t.Items))
	for i, it := range t.Items {
		ci := it
		if it.QtyApproved != nil {
			v := *it.QtyApproved
			ci.QtyApproved = &v
		}
		ci.ShipmentBatches = make([]entity.ShipmentBatch, len(it.ShipmentBatches))
		for j, b := range it.ShipmentBatches {
			cb := b
			cb.LotsConsumed = slices.Clone(b.LotsConsumed)
			ci.ShipmentBatches[j] = cb
		}
		ci.LotsConsumed = slices.Clone(it.LotsConsumed)
		c.Items[i] = ci
	}
	return &c
}

// --- Auditoría ---

type auditRepo struct {
	s  *Store
	st *state
}

func (r *auditRepo) Write(ctx context.Context, ev *entity.AuditEvent) error {
	r.s.mu.RLock()
	hook := r.s.auditHook
	r.s.mu.RUnlock()
	if hook != nil {
		if err := hook(ev); err != nil {
			return err
		}
	}
	return r.s.write(ctx, r.st, func(st *state) error {
		c := *ev
		st.audit = append(st.audit, &c)
		return nil
	})
}

// --- Sucursales y productos ---

type branchRepo struct{ s *Store }

func (r *branchRepo) GetByID(_ context.Context, tenantID, id string) (*entity.Branch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.branches[id]
	if !ok || b.TenantID != tenantID {
		return nil, nil
	}
	c := *b
	return &c, nil
}

func (r *branchRepo) ListActive(_ context.Context, tenantID string) ([]*entity.Branch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Branch
	for _, b := range r.s.branches {
		if b.TenantID == tenantID && b.IsActive {
			c := *b
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *entity.Branch) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *branchRepo) IsMember(_ context.Context, tenantID, branchID, userID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.members[memberKey{tenantID, branchID, userID}], nil
}

type productRepo struct{ s *Store }

func (r *productRepo) GetByID(_ context.Context, tenantID, id string) (*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[id]
	if !ok || p.TenantID != tenantID {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (r *productRepo) ListByIDs(_ context.Context, tenantID string, ids []string) ([]*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Product
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok && p.TenantID == tenantID {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}
