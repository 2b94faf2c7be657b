package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jhoicas/Inventario-stock/internal/application/audit"
	"github.com/jhoicas/Inventario-stock/internal/application/dto"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/pkg/jwt"
)

// Locals keys para UserID y TenantID en Fiber.
const (
	LocalUserID   = "user_id"
	LocalTenantID = "tenant_id"
)

// HeaderCorrelationID cabecera de correlación propagada a la auditoría.
const HeaderCorrelationID = "X-Correlation-ID"

// AuthMiddleware valida el Bearer Token JWT y extrae UserID y TenantID a c.Locals.
func AuthMiddleware(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header requerido"})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "formato: Bearer <token>"})
		}
		// fasthttp recorta los espacios finales: "Bearer   " llega como "Bearer" y cae en el formato inválido.
		userID, tenantID, err := jwt.Parse(jwtSecret, strings.TrimSpace(parts[1]))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
		}
		c.Locals(LocalUserID, userID)
		c.Locals(LocalTenantID, tenantID)
		return c.Next()
	}
}

// RequestMeta adjunta correlación, IP y User-Agent al contexto de la petición para la auditoría.
// Si el cliente no envía X-Correlation-ID se genera uno y se devuelve en la respuesta.
func RequestMeta() fiber.Handler {
	return func(c *fiber.Ctx) error {
		correlationID := c.Get(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		c.Set(HeaderCorrelationID, correlationID)
		c.SetUserContext(audit.WithMeta(c.UserContext(), audit.Meta{
			CorrelationID: correlationID,
			IP:            c.IP(),
			UserAgent:     c.Get(fiber.HeaderUserAgent),
		}))
		return c.Next()
	}
}

// GetUserID devuelve el UserID del contexto (después del middleware de auth).
func GetUserID(c *fiber.Ctx) string {
	v := c.Locals(LocalUserID)
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetTenantID devuelve el TenantID del contexto (después del middleware de auth).
func GetTenantID(c *fiber.Ctx) string {
	v := c.Locals(LocalTenantID)
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// actorFrom arma el Actor autenticado; ok=false si faltan claims.
func actorFrom(c *fiber.Ctx) (entity.Actor, bool) {
	a := entity.Actor{TenantID: GetTenantID(c), UserID: GetUserID(c)}
	return a, a.TenantID != "" && a.UserID != ""
}
