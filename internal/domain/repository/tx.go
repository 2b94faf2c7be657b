package repository

import "context"

// Repositories repositorios atados a una misma transacción de BD.
type Repositories interface {
	Lots() StockLotRepository
	Stock() StockRepository
	Ledger() StockLedgerRepository
	Transfers() StockTransferRepository
	Audit() AuditRepository
}

// TxRunner ejecuta fn dentro de una transacción SERIALIZABLE; Commit si fn devuelve nil, Rollback si no.
// Garantiza atomicidad para el motor de stock.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
