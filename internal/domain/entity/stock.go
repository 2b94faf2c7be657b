package entity

import "time"

// ProductStock es el agregado por (tenant, sucursal, producto).
// QtyOnHand se mantiene desnormalizado: siempre igual a la suma de QtyRemaining de los lotes.
type ProductStock struct {
	TenantID     string
	BranchID     string
	ProductID    string
	QtyOnHand    int
	QtyAllocated int
	UpdatedAt    time.Time
}
