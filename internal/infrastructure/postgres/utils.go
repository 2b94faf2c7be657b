package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jhoicas/Inventario-stock/internal/domain"
)

// Querier lo que los repositorios necesitan de un pool o de una transacción.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// beginner pool o tx: en una tx, Begin abre un SAVEPOINT.
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	if code := pgCode(err); code != "" {
		return code == "23505" // unique_violation
	}
	return strings.Contains(err.Error(), "23505")
}

// isCheckViolation 23514: p. ej. qty_remaining fuera de [0, qty_received].
func isCheckViolation(err error) bool {
	return pgCode(err) == "23514"
}

// isSerializationFailure 40001 (serialization_failure) o 40P01 (deadlock_detected).
func isSerializationFailure(err error) bool {
	switch pgCode(err) {
	case "40001", "40P01":
		return true
	}
	return false
}

// mapTxError traduce fallos de concurrencia de PostgreSQL a domain.Serialization (un Conflict reintentable).
// En SERIALIZABLE una clave única tomada por otra tx concurrente llega como 40001, no como 23505.
func mapTxError(err error) error {
	if err == nil {
		return nil
	}
	if isSerializationFailure(err) {
		return domain.Serialization()
	}
	return err
}
