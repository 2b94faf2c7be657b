package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/Inventario-stock/internal/application/dto"
	"github.com/jhoicas/Inventario-stock/internal/domain"
	"github.com/jhoicas/Inventario-stock/pkg/logger"
)

var kindStatus = map[domain.Kind]int{
	domain.KindValidation:       fiber.StatusBadRequest,
	domain.KindNotFound:         fiber.StatusNotFound,
	domain.KindPermissionDenied: fiber.StatusForbidden,
	domain.KindConflict:         fiber.StatusConflict,
}

// writeError traduce el error del núcleo a status + ErrorResponse. Errores sin Kind: 500.
func writeError(c *fiber.Ctx, log *logger.Logger, err error) error {
	kind := domain.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("error interno")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
	}
	resp := dto.ErrorResponse{Code: string(kind), Message: err.Error()}
	var de *domain.Error
	if errors.As(err, &de) {
		resp.Message = de.Message
		resp.Details = de.Details
	}
	if errors.Is(err, domain.ErrInsufficientStock) {
		resp.Code = "INSUFFICIENT_STOCK"
	}
	return c.Status(status).JSON(resp)
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
