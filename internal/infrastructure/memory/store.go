// Package memory implementa todos los puertos de repositorio en memoria.
// Lo usan los tests de servicios y de la capa HTTP; cmd/api siempre usa PostgreSQL.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/internal/domain/repository"
)

type stockKey struct {
	tenantID  string
	branchID  string
	productID string
}

type memberKey struct {
	tenantID string
	branchID string
	userID   string
}

// state datos transaccionales. Un state confirmado nunca se muta: cada transacción trabaja
// sobre una copia y la intercambia al confirmar.
type state struct {
	lots      map[string]*entity.StockLot
	stock     map[stockKey]*entity.ProductStock
	ledger    []*entity.StockLedgerEntry
	transfers map[string]*entity.StockTransfer
	audit     []*entity.AuditEvent
}

func newState() *state {
	return &state{
		lots:      make(map[string]*entity.StockLot),
		stock:     make(map[stockKey]*entity.ProductStock),
		transfers: make(map[string]*entity.StockTransfer),
	}
}

func (s *state) clone() *state {
	c := &state{
		lots:      make(map[string]*entity.StockLot, len(s.lots)),
		stock:     make(map[stockKey]*entity.ProductStock, len(s.stock)),
		ledger:    slices.Clone(s.ledger),
		transfers: make(map[string]*entity.StockTransfer, len(s.transfers)),
		audit:     slices.Clone(s.audit),
	}
	for k, v := range s.lots {
		l := *v
		c.lots[k] = &l
	}
	for k, v := range s.stock {
		st := *v
		c.stock[k] = &st
	}
	// Los traslados se guardan siempre como copias profundas y se reemplazan enteros en Update.
	maps.Copy(c.transfers, s.transfers)
	return c
}

// Store almacenamiento en memoria. Las transacciones se serializan con un único escritor
// (equivalente a SERIALIZABLE); las lecturas fuera de transacción ven el último commit.
type Store struct {
	txMu sync.Mutex

	mu        sync.RWMutex
	committed *state
	branches  map[string]*entity.Branch
	members   map[memberKey]bool
	products  map[string]*entity.Product
	auditHook func(*entity.AuditEvent) error
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{
		committed: newState(),
		branches:  make(map[string]*entity.Branch),
		members:   make(map[memberKey]bool),
		products:  make(map[string]*entity.Product),
	}
}

var _ repository.TxRunner = (*Store)(nil)

// Run ejecuta fn sobre una copia del estado y la confirma si fn devuelve nil.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	work := s.snapshot().clone()
	if err := fn(ctx, &txRepos{s: s, st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.committed = work
	s.mu.Unlock()
	return nil
}

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed
}

// read ejecuta fn sobre el estado de la transacción o, fuera de ella, sobre el último commit.
func (s *Store) read(st *state, fn func(*state) error) error {
	if st != nil {
		return fn(st)
	}
	return fn(s.snapshot())
}

// write fuera de transacción abre una propia (autocommit).
func (s *Store) write(ctx context.Context, st *state, fn func(*state) error) error {
	if st != nil {
		return fn(st)
	}
	return s.Run(ctx, func(_ context.Context, repos repository.Repositories) error {
		return fn(repos.(*txRepos).st)
	})
}

// Repositorios fuera de transacción (lecturas del último commit, escrituras en autocommit).

func (s *Store) Lots() repository.StockLotRepository          { return &lotRepo{s: s} }
func (s *Store) Stock() repository.StockRepository            { return &stockRepo{s: s} }
func (s *Store) Ledger() repository.StockLedgerRepository     { return &ledgerRepo{s: s} }
func (s *Store) Transfers() repository.StockTransferRepository { return &transferRepo{s: s} }
func (s *Store) Audit() repository.AuditRepository            { return &auditRepo{s: s} }
func (s *Store) Branches() repository.BranchRepository        { return &branchRepo{s: s} }
func (s *Store) Products() repository.ProductRepository       { return &productRepo{s: s} }

type txRepos struct {
	s  *Store
	st *state
}

func (r *txRepos) Lots() repository.StockLotRepository          { return &lotRepo{s: r.s, st: r.st} }
func (r *txRepos) Stock() repository.StockRepository            { return &stockRepo{s: r.s, st: r.st} }
func (r *txRepos) Ledger() repository.StockLedgerRepository     { return &ledgerRepo{s: r.s, st: r.st} }
func (r *txRepos) Transfers() repository.StockTransferRepository { return &transferRepo{s: r.s, st: r.st} }
func (r *txRepos) Audit() repository.AuditRepository            { return &auditRepo{s: r.s, st: r.st} }

// --- Datos de referencia (sucursales, membresías, productos) ---

// AddBranch registra una sucursal.
func (s *Store) AddBranch(b entity.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches[b.ID] = &b
}

// AddMember da acceso a userID sobre la sucursal.
func (s *Store) AddMember(tenantID, branchID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[memberKey{tenantID, branchID, userID}] = true
}

// AddProduct registra un producto.
func (s *Store) AddProduct(p entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = &p
}

// SetAuditHook intercepta cada escritura de auditoría; si devuelve error, el evento no se guarda.
func (s *Store) SetAuditHook(fn func(*entity.AuditEvent) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditHook = fn
}

// AuditEvents eventos de auditoría confirmados.
func (s *Store) AuditEvents() []*entity.AuditEvent {
	return slices.Clone(s.snapshot().audit)
}

// LotsOf todos los lotes (incluidos los agotados) de una sucursal/producto en orden FIFO.
func (s *Store) LotsOf(tenantID, branchID, productID string) []*entity.StockLot {
	return collectLots(s.snapshot(), tenantID, branchID, productID, false)
}

// LedgerOf filas del libro de una sucursal/producto en orden de inserción.
func (s *Store) LedgerOf(tenantID, branchID, productID string) []*entity.StockLedgerEntry {
	var out []*entity.StockLedgerEntry
	for _, e := range s.snapshot().ledger {
		if e.TenantID == tenantID && e.BranchID == branchID && e.ProductID == productID {
			c := *e
			out = append(out, &c)
		}
	}
	return out
}
