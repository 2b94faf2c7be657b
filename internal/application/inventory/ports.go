package inventory

import (
	"context"

	"github.com/jhoicas/Inventario-stock/internal/application/dto"
)

// LevelKey identifica el agregado de stock de un producto en una sucursal.
type LevelKey struct {
	TenantID  string
	BranchID  string
	ProductID string
}

// LevelCache caché de lectura de niveles con generación por clave.
// Get devuelve la generación vigente aunque no haya valor; Set guarda el valor marcado con la
// generación leída antes de consultar la base. Invalidate avanza la generación después de cada
// commit, así un Set con una lectura anterior al commit nunca vuelve a servirse.
// Los errores de caché nunca hacen fallar la operación.
type LevelCache interface {
	Get(ctx context.Context, key LevelKey) (levels *dto.StockLevelsDTO, gen int64, ok bool, err error)
	Set(ctx context.Context, key LevelKey, gen int64, levels *dto.StockLevelsDTO) error
	Invalidate(ctx context.Context, keys ...LevelKey) error
}

// NoopLevelCache caché deshabilitada.
type NoopLevelCache struct{}

func (NoopLevelCache) Get(context.Context, LevelKey) (*dto.StockLevelsDTO, int64, bool, error) {
	return nil, 0, false, nil
}

func (NoopLevelCache) Set(context.Context, LevelKey, int64, *dto.StockLevelsDTO) error { return nil }

func (NoopLevelCache) Invalidate(context.Context, ...LevelKey) error { return nil }
