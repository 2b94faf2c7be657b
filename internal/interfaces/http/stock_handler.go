package http

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/Inventario-stock/internal/application/dto"
	"github.com/jhoicas/Inventario-stock/internal/application/inventory"
	"github.com/jhoicas/Inventario-stock/internal/domain"
	"github.com/jhoicas/Inventario-stock/internal/domain/entity"
	"github.com/jhoicas/Inventario-stock/pkg/logger"
)

// StockHandler movimientos y consultas de stock (protegido).
type StockHandler struct {
	ledger *inventory.LedgerUseCase
	query  *inventory.QueryUseCase
	log    *logger.Logger
}

// NewStockHandler construye el handler.
func NewStockHandler(ledger *inventory.LedgerUseCase, query *inventory.QueryUseCase, log *logger.Logger) *StockHandler {
	return &StockHandler{ledger: ledger, query: query, log: log.Component("http_stock")}
}

// Receive POST /api/stock/receive
func (h *StockHandler) Receive(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var in dto.ReceiveStockRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	res, err := h.ledger.Receive(c.UserContext(), actor, inventory.ReceiveInput{
		BranchID:      in.BranchID,
		ProductID:     in.ProductID,
		Qty:           in.Qty,
		UnitCostPence: in.UnitCostPence,
		SourceRef:     in.SourceRef,
		Reason:        in.Reason,
		OccurredAt:    in.OccurredAt,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(inventory.ToMovementDTO(res))
}

// Consume POST /api/stock/consume
func (h *StockHandler) Consume(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var in dto.ConsumeStockRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	res, err := h.ledger.Consume(c.UserContext(), actor, inventory.ConsumeInput{
		BranchID:   in.BranchID,
		ProductID:  in.ProductID,
		Qty:        in.Qty,
		Reason:     in.Reason,
		OccurredAt: in.OccurredAt,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(inventory.ToMovementDTO(res))
}

// Adjust POST /api/stock/adjust
func (h *StockHandler) Adjust(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var in dto.AdjustStockRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	res, err := h.ledger.AdjustStock(c.UserContext(), actor, inventory.AdjustInput{
		BranchID:      in.BranchID,
		ProductID:     in.ProductID,
		QtyDelta:      in.QtyDelta,
		UnitCostPence: in.UnitCostPence,
		Reason:        in.Reason,
		OccurredAt:    in.OccurredAt,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(inventory.ToMovementDTO(res))
}

// Restore POST /api/stock/restore
func (h *StockHandler) Restore(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var in dto.RestoreLotsRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	lots := make([]inventory.LotRestore, 0, len(in.Lots))
	for _, l := range in.Lots {
		lots = append(lots, inventory.LotRestore{LotID: l.LotID, Qty: l.Qty})
	}
	res, err := h.ledger.RestoreLotQuantities(c.UserContext(), actor, inventory.RestoreInput{
		BranchID:   in.BranchID,
		Lots:       lots,
		Reason:     in.Reason,
		OccurredAt: in.OccurredAt,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(inventory.ToMovementDTO(res))
}

// Levels GET /api/stock/levels?branchId=&productId=
func (h *StockHandler) Levels(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	lv, err := h.query.GetLevels(c.UserContext(), actor, c.Query("branchId"), c.Query("productId"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(lv)
}

// LevelsBulk GET /api/stock/levels/bulk?productId=
func (h *StockHandler) LevelsBulk(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	list, err := h.query.GetLevelsBulk(c.UserContext(), actor, c.Query("productId"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"total": len(list), "levels": list})
}

// Ledger GET /api/stock/ledger?productId=&branchId=&kinds=&minQty=&maxQty=&occurredFrom=&occurredTo=&order=&cursor=&limit=
func (h *StockHandler) Ledger(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	q, err := parseLedgerQuery(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	page, err := h.query.ListLedger(c.UserContext(), actor, q)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(page)
}

func parseLedgerQuery(c *fiber.Ctx) (inventory.LedgerQuery, error) {
	q := inventory.LedgerQuery{
		ProductID: c.Query("productId"),
		BranchID:  c.Query("branchId"),
		Page:      dto.CursorPageRequest{Cursor: c.Query("cursor")},
	}
	for _, k := range splitList(c.Query("kinds")) {
		q.Kinds = append(q.Kinds, entity.LedgerKind(strings.ToUpper(k)))
	}
	var err error
	if q.MinQty, err = optInt(c, "minQty"); err != nil {
		return q, err
	}
	if q.MaxQty, err = optInt(c, "maxQty"); err != nil {
		return q, err
	}
	if q.OccurredFrom, err = optTime(c, "occurredFrom"); err != nil {
		return q, err
	}
	if q.OccurredTo, err = optTime(c, "occurredTo"); err != nil {
		return q, err
	}
	switch strings.ToLower(c.Query("order")) {
	case "", "desc":
	case "asc":
		q.Ascending = true
	default:
		return q, domain.Validation("order must be asc or desc")
	}
	if q.Page.Limit, err = queryLimit(c); err != nil {
		return q, err
	}
	return q, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func optInt(c *fiber.Ctx, key string) (*int, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, domain.Validation("%s must be an integer", key)
	}
	return &n, nil
}

func optTime(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, domain.Validation("%s must be an RFC3339 timestamp", key)
	}
	return &t, nil
}

func queryLimit(c *fiber.Ctx) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.Validation("limit must be a positive integer")
	}
	return n, nil
}
