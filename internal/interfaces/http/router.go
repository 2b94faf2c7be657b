package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/Inventario-stock/internal/application/inventory"
	"github.com/jhoicas/Inventario-stock/internal/application/transfer"
	"github.com/jhoicas/Inventario-stock/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Ledger    *inventory.LedgerUseCase
	Query     *inventory.QueryUseCase
	Transfers *transfer.UseCase
	JWTSecret string
	Logger    *logger.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Rutas protegidas (requieren Bearer Token)
	api := app.Group("/api", RequestMeta(), AuthMiddleware(deps.JWTSecret))

	// Stock: movimientos y consultas
	stock := api.Group("/stock")
	stockHandler := NewStockHandler(deps.Ledger, deps.Query, deps.Logger)
	stock.Post("/receive", stockHandler.Receive)
	stock.Post("/consume", stockHandler.Consume)
	stock.Post("/adjust", stockHandler.Adjust)
	stock.Post("/restore", stockHandler.Restore)
	stock.Get("/levels", stockHandler.Levels)
	stock.Get("/levels/bulk", stockHandler.LevelsBulk)
	stock.Get("/ledger", stockHandler.Ledger)

	// Traslados entre sucursales
	transfers := api.Group("/transfers")
	transferHandler := NewTransferHandler(deps.Transfers, deps.Logger)
	transfers.Post("/", transferHandler.Create)
	transfers.Get("/", transferHandler.List)
	transfers.Get("/:id", transferHandler.Get)
	transfers.Post("/:id/review", transferHandler.Review)
	transfers.Post("/:id/ship", transferHandler.Ship)
	transfers.Post("/:id/receive", transferHandler.Receive)
	transfers.Post("/:id/cancel", transferHandler.Cancel)
	transfers.Post("/:id/reverse", transferHandler.Reverse)
}
