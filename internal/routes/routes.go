package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liyaqa/webhook-delivery/internal/handlers"
)

// SetupRoutes configures all application routes with dependencies.
func SetupRoutes(
	app *fiber.App,
	webhookHandler *handlers.WebhookHandler,
	deliveryHandler *handlers.DeliveryHandler,
	healthHandler *handlers.HealthHandler,
) {
	app.Get("/health", healthHandler.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")

	webhooks := api.Group("/webhooks")
	webhooks.Post("/", webhookHandler.Create)
	webhooks.Get("/", webhookHandler.List)
	webhooks.Get("/:id", webhookHandler.Get)
	webhooks.Patch("/:id", webhookHandler.Update)
	webhooks.Delete("/:id", webhookHandler.Delete)
	webhooks.Post("/:id/activate", webhookHandler.Activate)
	webhooks.Post("/:id/deactivate", webhookHandler.Deactivate)
	webhooks.Post("/:id/rotate-secret", webhookHandler.RotateSecret)
	webhooks.Post("/:id/test", webhookHandler.SendTest)
	webhooks.Get("/:id/deliveries", deliveryHandler.History)
	webhooks.Get("/:id/deliveries/stats", deliveryHandler.Stats)

	deliveries := api.Group("/deliveries")
	deliveries.Get("/:id", deliveryHandler.Get)
	deliveries.Post("/:id/retry", deliveryHandler.Retry)
}
