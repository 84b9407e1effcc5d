package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liyaqa/webhook-delivery/internal/apperrors"
)

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	switch {
	case apperrors.IsValidation(err):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case apperrors.IsNotFound(err):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case apperrors.IsInvalidState(err):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
}

// tenantID extracts the tenant scope from the X-Tenant-ID header.
func tenantID(c *fiber.Ctx) (uuid.UUID, error) {
	raw := c.Get("X-Tenant-ID")
	if raw == "" {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "X-Tenant-ID header is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "X-Tenant-ID must be a UUID")
	}
	return id, nil
}

// pathID parses a UUID path parameter.
func pathID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, name+" must be a UUID")
	}
	return id, nil
}
