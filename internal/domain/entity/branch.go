package entity

import "time"

// Branch representa una sucursal del tenant donde se almacena inventario (multi-sucursal).
type Branch struct {
	ID        string
	TenantID  string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
