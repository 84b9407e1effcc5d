package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/liyaqa/webhook-delivery/internal/dispatcher"
	"github.com/liyaqa/webhook-delivery/internal/registry"
)

// WebhookHandler exposes subscription management endpoints.
type WebhookHandler struct {
	Registry   *registry.Registry
	Dispatcher *dispatcher.Dispatcher
	Logger     *zap.Logger
}

func NewWebhookHandler(reg *registry.Registry, disp *dispatcher.Dispatcher, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		Registry:   reg,
		Dispatcher: disp,
		Logger:     logger,
	}
}

// Create handles POST /api/v1/webhooks.
func (h *WebhookHandler) Create(c *fiber.Ctx) error {
	tenant, err := tenantID(c)
	if err != nil {
		return err
	}

	var input registry.CreateWebhookInput
	if err := c.BodyParser(&input); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	webhook, err := h.Registry.Create(c.Context(), tenant, input)
	if err != nil {
		return writeError(c, h.Logger, err)
	}

	// The secret is returned once, at creation time only.
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"webhook": webhook,
		"secret":  webhook.Secret,
	})
}

// List handles GET /api/v1/webhooks.
func (h *WebhookHandler) List(c *fiber.Ctx) error {
	tenant, err := tenantID(c)
	if err != nil {
		return err
	}

	webhooks, err := h.Registry.List(c.Context(), tenant)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(fiber.Map{"webhooks": webhooks})
}

// Get handles GET /api/v1/webhooks/:id.
func (h *WebhookHandler) Get(c *fiber.Ctx) error {
	tenant, err := tenantID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	webhook, err := h.Registry.Get(c.Context(), tenant, id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(webhook)
}

// Update handles PATCH /api/v1/webhooks/:id.
func (h *WebhookHandler) Update(c *fiber.Ctx) error {
	tenant, err := tenantID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var input registry.UpdateWebhookInput
	if err := c.BodyParser(&input); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	webhook, err := h.Registry.Update(c.Context(), tenant, id, input)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(webhook)
}

// Delete handles DELETE /api/v1/webhooks/:id.
func (h *WebhookHandler) Delete(c *fiber.Ctx) error {
	tenant, err := tenantID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.Registry.Delete(c.Context(), tenant, id); err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Activate handles POST /api/v1/webhooks/:id/activate.
func (h *WebhookHandler) Activate(c *fiber.Ctx) error {
	return h.setActive(c, true)
}

// Deactivate handles POST /api/v1/webhooks/:id/deactivate.
func (h *WebhookHandler) Deactivate(c *fiber.Ctx) error {
	return h.setActive(c, false)
}

func (h *WebhookHandler) setActive(c *fiber.Ctx, active bool) error {
	tenant, err := tenantID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var webhook interface{}
	if active {
		webhook, err = h.Registry.Activate(c.Context(), tenant, id)
	} else {
		webhook, err = h.Registry.Deactivate(c.Context(), tenant, id)
	}
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(webhook)
}

// RotateSecret handles POST /api/v1/webhooks/:id/rotate-secret.
func (h *WebhookHandler) RotateSecret(c *fiber.Ctx) error {
	tenant, err := tenantID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	webhook, err := h.Registry.RegenerateSecret(c.Context(), tenant, id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(fiber.Map{
		"webhook": webhook,
		"secret":  webhook.Secret,
	})
}

// SendTest handles POST /api/v1/webhooks/:id/test.
func (h *WebhookHandler) SendTest(c *fiber.Ctx) error {
	tenant, err := tenantID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var body struct {
		EventType string `json:"event_type"`
	}
	// Body is optional; default event type is test.ping.
	_ = c.BodyParser(&body)

	delivery, err := h.Dispatcher.SendTestWebhook(c.Context(), tenant, id, body.EventType)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(delivery)
}
