package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/liyaqa/webhook-delivery/internal/dispatcher"
	"github.com/liyaqa/webhook-delivery/internal/models"
	"github.com/liyaqa/webhook-delivery/internal/registry"
)

const defaultPageSize = 25

// DeliveryHandler exposes the operator-facing read and action endpoints
// for deliveries.
type DeliveryHandler struct {
	Registry   *registry.Registry
	Dispatcher *dispatcher.Dispatcher
	Logger     *zap.Logger
}

func NewDeliveryHandler(reg *registry.Registry, disp *dispatcher.Dispatcher, logger *zap.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		Registry:   reg,
		Dispatcher: disp,
		Logger:     logger,
	}
}

// HistoryResponse is the paginated delivery history payload.
type HistoryResponse struct {
	Deliveries []models.Delivery `json:"deliveries"`
	HasMore    bool              `json:"has_more"`
}

// History handles GET /api/v1/webhooks/:id/deliveries.
func (h *DeliveryHandler) History(c *fiber.Ctx) error {
	tenant, err := tenantID(c)
	if err != nil {
		return err
	}
	webhookID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	// Resolving through the registry enforces tenant scope.
	if _, err := h.Registry.Get(c.Context(), tenant, webhookID); err != nil {
		return writeError(c, h.Logger, err)
	}

	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}

	deliveries, hasMore, err := h.Dispatcher.GetDeliveryHistory(c.Context(), webhookID, limit, offset)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(HistoryResponse{Deliveries: deliveries, HasMore: hasMore})
}

// Stats handles GET /api/v1/webhooks/:id/deliveries/stats.
func (h *DeliveryHandler) Stats(c *fiber.Ctx) error {
	tenant, err := tenantID(c)
	if err != nil {
		return err
	}
	webhookID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if _, err := h.Registry.Get(c.Context(), tenant, webhookID); err != nil {
		return writeError(c, h.Logger, err)
	}

	stats, err := h.Dispatcher.GetDeliveryStats(c.Context(), webhookID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(stats)
}

// Get handles GET /api/v1/deliveries/:id.
func (h *DeliveryHandler) Get(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	delivery, err := h.Dispatcher.GetDelivery(c.Context(), id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(delivery)
}

// Retry handles POST /api/v1/deliveries/:id/retry.
func (h *DeliveryHandler) Retry(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	delivery, err := h.Dispatcher.RetryDelivery(c.Context(), id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(delivery)
}

func pagination(c *fiber.Ctx) (limit, offset int, err error) {
	limit = defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return 0, 0, fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
		}
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, fiber.NewError(fiber.StatusBadRequest, "offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}
