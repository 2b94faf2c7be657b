package transfer

import "context"

// Locker lock distribuido por traslado: serializa las transiciones de un mismo traslado entre réplicas.
// Si otro proceso lo tiene, Lock devuelve un error domain.Conflict. Cualquier otro error se considera
// degradación: se registra y la operación sigue, protegida por la transacción SERIALIZABLE.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(context.Context), err error)
}

// NoopLocker sin lock distribuido (una sola réplica o tests).
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, string) (func(context.Context), error) {
	return func(context.Context) {}, nil
}

func lockKey(tenantID, transferID string) string {
	return "stock-transfer:" + tenantID + ":" + transferID
}
