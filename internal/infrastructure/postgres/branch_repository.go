package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/internal/domain/repository"
)

var _ repository.BranchRepository = (*BranchRepo)(nil)

// BranchRepo implementación del puerto BranchRepository sobre PostgreSQL.
type BranchRepo struct {
	q Querier
}

// NewBranchRepository construye el adaptador de persistencia para sucursales.
func NewBranchRepository(q Querier) *BranchRepo {
	return &BranchRepo{q: q}
}

// GetByID obtiene una sucursal del tenant; nil si no existe.
func (r *BranchRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.Branch, error) {
	query := `
		SELECT id, tenant_id, name, is_active, created_at, updated_at
		FROM branches WHERE tenant_id = $1 AND id = $2`
	var b entity.Branch
	err := r.q.QueryRow(ctx, query, tenantID, id).Scan(
		&b.ID, &b.TenantID, &b.Name, &b.IsActive, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get branch: %w", err)
	}
	return &b, nil
}

// ListActive sucursales activas del tenant ordenadas por nombre.
func (r *BranchRepo) ListActive(ctx context.Context, tenantID string) ([]*entity.Branch, error) {
	query := `
		SELECT id, tenant_id, name, is_active, created_at, updated_at
		FROM branches WHERE tenant_id = $1 AND is_active ORDER BY name, id`
	rows, err := r.q.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()
	var list []*entity.Branch
	for rows.Next() {
		var b entity.Branch
		if err := rows.Scan(&b.ID, &b.TenantID, &b.Name, &b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		list = append(list, &b)
	}
	return list, rows.Err()
}

// IsMember indica si el usuario pertenece a la sucursal.
func (r *BranchRepo) IsMember(ctx context.Context, tenantID, branchID, userID string) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM branch_members
			WHERE tenant_id = $1 AND branch_id = $2 AND user_id = $3
		)`, tenantID, branchID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check branch membership: %w", err)
	}
	return ok, nil
}
