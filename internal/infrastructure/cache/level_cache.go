package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jhoicas/Inventario-stock/internal/application/dto"
	"github.com/jhoicas/Inventario-stock/internal/application/inventory"
	redis "github.com/redis/go-redis/v9"
)

var _ inventory.LevelCache = (*RedisLevelCache)(nil)

// kv lo que la caché usa del cliente Redis.
type kv interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisLevelCache niveles de stock serializados en JSON con TTL.
// Cada valor lleva la generación con la que se leyó; la generación vive en una clave aparte sin TTL
// (una por sucursal y producto) y sólo crece.
type RedisLevelCache struct {
	client kv
	ttl    time.Duration
}

// NewRedisLevelCache construye la caché. ttl <= 0 usa 30s.
func NewRedisLevelCache(client kv, ttl time.Duration) *RedisLevelCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLevelCache{client: client, ttl: ttl}
}

// LevelKey clave Redis del agregado.
func LevelKey(k inventory.LevelKey) string {
	return fmt.Sprintf("stock-levels:%s:%s:%s", k.TenantID, k.BranchID, k.ProductID)
}

// GenerationKey clave Redis del contador de invalidaciones del agregado.
func GenerationKey(k inventory.LevelKey) string {
	return fmt.Sprintf("stock-levels-gen:%s:%s:%s", k.TenantID, k.BranchID, k.ProductID)
}

type envelope struct {
	Gen    int64              `json:"gen"`
	Levels dto.StockLevelsDTO `json:"levels"`
}

// Get lee valor y generación en un solo MGET. Un valor de otra generación cuenta como fallo.
func (c *RedisLevelCache) Get(ctx context.Context, key inventory.LevelKey) (*dto.StockLevelsDTO, int64, bool, error) {
	vals, err := c.client.MGet(ctx, LevelKey(key), GenerationKey(key)).Result()
	if err != nil {
		return nil, 0, false, err
	}
	if len(vals) != 2 {
		return nil, 0, false, fmt.Errorf("mget levels: %d values", len(vals))
	}
	var gen int64
	if s, ok := vals[1].(string); ok {
		if gen, err = strconv.ParseInt(s, 10, 64); err != nil {
			return nil, 0, false, fmt.Errorf("decode levels generation: %w", err)
		}
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, gen, false, nil
	}
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, 0, false, fmt.Errorf("decode cached levels: %w", err)
	}
	if env.Gen != gen {
		return nil, gen, false, nil
	}
	return &env.Levels, gen, true, nil
}

func (c *RedisLevelCache) Set(ctx context.Context, key inventory.LevelKey, gen int64, levels *dto.StockLevelsDTO) error {
	if levels == nil {
		return nil
	}
	payload, err := json.Marshal(envelope{Gen: gen, Levels: *levels})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, LevelKey(key), payload, c.ttl).Err()
}

// Invalidate avanza la generación de cada clave y borra los valores en un solo DEL.
func (c *RedisLevelCache) Invalidate(ctx context.Context, keys ...inventory.LevelKey) error {
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		if err := c.client.Incr(ctx, GenerationKey(k)).Err(); err != nil {
			return fmt.Errorf("bump levels generation: %w", err)
		}
		names[i] = LevelKey(k)
	}
	return c.client.Del(ctx, names...).Err()
}
