package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrForbidden         = errors.New("acceso denegado")
	ErrConflict          = errors.New("conflicto con el estado actual")
	ErrInsufficientStock = errors.New("stock insuficiente")
	// ErrSerialization la base abortó la transacción por un conflicto con otra concurrente; repetirla puede funcionar.
	ErrSerialization = errors.New("conflicto de serialización")
)

// Kind clasifica los errores que el núcleo devuelve al llamador; la capa HTTP lo traduce a un status.
type Kind string

const (
	KindValidation       Kind = "VALIDATION"
	KindNotFound         Kind = "NOT_FOUND"
	KindPermissionDenied Kind = "PERMISSION_DENIED"
	KindConflict         Kind = "CONFLICT"
)

// Error es el error estructurado del núcleo: tipo + mensaje legible + detalles opcionales.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap expone la causa (p. ej. ErrInsufficientStock).
func (e *Error) Unwrap() error { return e.cause }

// Is permite errors.Is(err, domain.ErrConflict) y similares a partir del Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidInput:
		return e.Kind == KindValidation
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrForbidden:
		return e.Kind == KindPermissionDenied
	case ErrConflict:
		return e.Kind == KindConflict
	}
	return false
}

// WithDetail agrega un detalle y devuelve el mismo error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Validation entrada malformada (qty <= 0, ítems vacíos, misma bodega origen/destino...).
func Validation(format string, args ...any) *Error {
	return newError(KindValidation, nil, format, args...)
}

// NotFound la entidad no existe o no pertenece al tenant.
func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, nil, format, args...)
}

// PermissionDenied el usuario no es miembro de la sucursal requerida.
func PermissionDenied(format string, args ...any) *Error {
	return newError(KindPermissionDenied, nil, format, args...)
}

// Conflict violación de la máquina de estados o del stock disponible.
func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, nil, format, args...)
}

// Serialization conflicto transitorio entre transacciones; coincide también con ErrSerialization.
func Serialization() *Error {
	return newError(KindConflict, ErrSerialization, "concurrent update, retry the operation")
}

// InsufficientStock conflicto de stock; coincide también con ErrInsufficientStock.
func InsufficientStock(requested, available int) *Error {
	return newError(KindConflict, ErrInsufficientStock, "Insufficient stock").
		WithDetail("requested", requested).
		WithDetail("available", available)
}

// KindOf devuelve el Kind de err, o "" si no es un error del núcleo.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindPermissionDenied
	case errors.Is(err, ErrConflict), errors.Is(err, ErrInsufficientStock):
		return KindConflict
	}
	return ""
}
