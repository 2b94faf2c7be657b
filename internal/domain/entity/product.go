package entity

import "time"

// Product representa un producto o SKU del tenant. El stock se maneja por sucursal en ProductStock.
type Product struct {
	ID        string
	TenantID  string
	SKU       string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
