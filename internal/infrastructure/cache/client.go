package cache

import (
	"context"
	"fmt"

	"github.com/jhoicas/Inventario-stock/pkg/config"
	redis "github.com/redis/go-redis/v9"
)

// NewClient abre el cliente Redis y verifica la conexión con PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
