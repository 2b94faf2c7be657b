package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/jhoicas/Inventario-stock/internal/application/transfer"
	"github.com/jhoicas/Inventario-stock/internal/domain"
	"github.com/jhoicas/Inventario-stock/pkg/logger"
)

var _ transfer.Locker = (*TransferLocker)(nil)

// TransferLocker lock por traslado con redislock. Reintenta brevemente antes de rendirse.
type TransferLocker struct {
	client *redislock.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewTransferLocker construye el locker sobre un cliente Redis (redislock.RedisClient).
func NewTransferLocker(client redislock.RedisClient, ttl time.Duration, log *logger.Logger) *TransferLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &TransferLocker{client: redislock.New(client), ttl: ttl, log: log}
}

// Lock obtiene el lock o devuelve domain.Conflict si otro proceso lo tiene.
func (l *TransferLocker) Lock(ctx context.Context, key string) (func(context.Context), error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 3),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, domain.Conflict("transfer is being modified by another request, retry the operation")
	}
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.Warn().Err(err).Str("key", key).Msg("no se pudo liberar el lock del traslado")
		}
	}, nil
}
