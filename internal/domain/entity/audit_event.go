package entity

import "time"

// AuditEvent registro de auditoría por cada sub-cambio (fila de libro, lote, agregado, traslado).
type AuditEvent struct {
	ID            string
	TenantID      string
	ActorUserID   string
	EntityType    string
	EntityID      string
	Action        string
	Before        any
	After         any
	CorrelationID string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Tipos de entidad auditados.
const (
	AuditEntityLot      = "STOCK_LOT"
	AuditEntityLedger   = "STOCK_LEDGER"
	AuditEntityStock    = "PRODUCT_STOCK"
	AuditEntityTransfer = "STOCK_TRANSFER"
)
