package repository

import (
	"context"

	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
)

// BranchRepository puerto de lectura de sucursales y membresías (DIP).
type BranchRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (*entity.Branch, error)
	ListActive(ctx context.Context, tenantID string) ([]*entity.Branch, error)
	IsMember(ctx context.Context, tenantID, branchID, userID string) (bool, error)
}
