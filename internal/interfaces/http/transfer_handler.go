package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/Inventario-stock/internal/application/dto"
	"github.com/jhoicas/Inventario-stock/internal/application/transfer"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/pkg/logger"
)

// TransferHandler flujo de traslados entre sucursales (protegido).
type TransferHandler struct {
	uc  *transfer.UseCase
	log *logger.Logger
}

// NewTransferHandler construye el handler.
func NewTransferHandler(uc *transfer.UseCase, log *logger.Logger) *TransferHandler {
	return &TransferHandler{uc: uc, log: log.Component("http_transfer")}
}

// Create POST /api/transfers
func (h *TransferHandler) Create(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var in dto.CreateTransferRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	items := make([]transfer.CreateItemInput, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, transfer.CreateItemInput{ProductID: it.ProductID, Qty: it.Qty})
	}
	t, err := h.uc.Create(c.UserContext(), actor, transfer.CreateInput{
		SourceBranchID:      in.SourceBranchID,
		DestinationBranchID: in.DestinationBranchID,
		Notes:               in.Notes,
		Items:               items,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(transfer.ToDTO(t))
}

// Get GET /api/transfers/:id
func (h *TransferHandler) Get(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	t, err := h.uc.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(transfer.ToDTO(t))
}

// List GET /api/transfers?status=&branchId=&direction=&cursor=&limit=
func (h *TransferHandler) List(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	limit, err := queryLimit(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	q := transfer.ListQuery{
		BranchID:  c.Query("branchId"),
		Direction: strings.ToLower(c.Query("direction")),
		Page:      dto.CursorPageRequest{Cursor: c.Query("cursor"), Limit: limit},
	}
	for _, s := range splitList(c.Query("status")) {
		q.Statuses = append(q.Statuses, entity.TransferStatus(strings.ToUpper(s)))
	}
	res, err := h.uc.List(c.UserContext(), actor, q)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(transfer.ToPageDTO(res))
}

// Review POST /api/transfers/:id/review
func (h *TransferHandler) Review(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var in dto.ReviewTransferRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	items := make([]transfer.ReviewItemInput, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, transfer.ReviewItemInput{ItemID: it.ItemID, QtyApproved: it.QtyApproved})
	}
	t, err := h.uc.Review(c.UserContext(), actor, c.Params("id"), transfer.ReviewInput{
		Decision: transfer.ReviewDecision(strings.ToLower(in.Decision)),
		Notes:    in.Notes,
		Items:    items,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(transfer.ToDTO(t))
}

// Ship POST /api/transfers/:id/ship
func (h *TransferHandler) Ship(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	items, err := parseItemQtys(c)
	if err != nil {
		return invalidBody(c)
	}
	t, err := h.uc.Ship(c.UserContext(), actor, c.Params("id"), items)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(transfer.ToDTO(t))
}

// Receive POST /api/transfers/:id/receive
func (h *TransferHandler) Receive(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	items, err := parseItemQtys(c)
	if err != nil {
		return invalidBody(c)
	}
	t, err := h.uc.Receive(c.UserContext(), actor, c.Params("id"), items)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(transfer.ToDTO(t))
}

// Cancel POST /api/transfers/:id/cancel
func (h *TransferHandler) Cancel(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	t, err := h.uc.Cancel(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(transfer.ToDTO(t))
}

// Reverse POST /api/transfers/:id/reverse. Devuelve el traslado de reverso creado.
func (h *TransferHandler) Reverse(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var in dto.ReverseTransferRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
	}
	t, err := h.uc.Reverse(c.UserContext(), actor, c.Params("id"), in.Reason)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(transfer.ToDTO(t))
}

// parseItemQtys body opcional: sin cuerpo o sin ítems = todo lo pendiente.
func parseItemQtys(c *fiber.Ctx) ([]transfer.ItemQty, error) {
	var in dto.TransferItemsRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return nil, err
		}
	}
	items := make([]transfer.ItemQty, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, transfer.ItemQty{ItemID: it.ItemID, Qty: it.Qty})
	}
	return items, nil
}
