package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/Inventario-stock/internal/domain/repository"
)

var _ repository.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL SERIALIZABLE.
type TxRunner struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewTxRunner construye el runner con el pool. timeout 0 = sin límite propio.
func NewTxRunner(pool *pgxpool.Pool, timeout time.Duration) *TxRunner {
	return &TxRunner{pool: pool, timeout: timeout}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
// Los fallos de serialización (40001/40P01) se devuelven como domain.Conflict.
func (r *TxRunner) Run(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, NewRepositories(tx)); err != nil {
		return mapTxError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		if mapped := mapTxError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Repositories repositorios atados a un mismo Querier (pool o tx).
type Repositories struct {
	q Querier
}

// NewRepositories agrupa los repositorios sobre q.
func NewRepositories(q Querier) *Repositories {
	return &Repositories{q: q}
}

func (r *Repositories) Lots() repository.StockLotRepository          { return NewStockLotRepository(r.q) }
func (r *Repositories) Stock() repository.StockRepository            { return NewStockRepository(r.q) }
func (r *Repositories) Ledger() repository.StockLedgerRepository     { return NewStockLedgerRepository(r.q) }
func (r *Repositories) Transfers() repository.StockTransferRepository { return NewStockTransferRepository(r.q) }
func (r *Repositories) Audit() repository.AuditRepository            { return NewAuditRepository(r.q) }
