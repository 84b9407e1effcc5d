// Package publisher turns normalized domain events into durable delivery
// rows, one per matching webhook. Persisting the rows is the unit of
// "queued": no network call happens here, and a crash after commit cannot
// lose the event.
package publisher

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/liyaqa/webhook-delivery/internal/metrics"
	"github.com/liyaqa/webhook-delivery/internal/models"
	"github.com/liyaqa/webhook-delivery/internal/registry"
)

const createBatchSize = 100

type Publisher struct {
	db       *gorm.DB
	registry *registry.Registry
	logger   *zap.Logger
}

func NewPublisher(db *gorm.DB, reg *registry.Registry, logger *zap.Logger) *Publisher {
	return &Publisher{
		db:       db,
		registry: reg,
		logger:   logger,
	}
}

// Publish creates one pending delivery row per active webhook subscribed to
// the event's type within its tenant and returns the number created. Zero
// matching webhooks is a no-op, not an error.
func (p *Publisher) Publish(ctx context.Context, event models.Event) (int, error) {
	webhooks, err := p.registry.FindActiveByEventType(ctx, event.TenantID, event.EventType)
	if err != nil {
		return 0, fmt.Errorf("failed to look up webhooks for event %s: %w", event.EventID, err)
	}

	if len(webhooks) == 0 {
		p.logger.Debug("No webhooks subscribed to event, skipping",
			zap.String("event_type", event.EventType),
			zap.String("tenant_id", event.TenantID.String()),
		)
		return 0, nil
	}

	deliveries := make([]models.Delivery, 0, len(webhooks))
	for _, webhook := range webhooks {
		deliveries = append(deliveries, models.Delivery{
			ID:        uuid.New(),
			WebhookID: webhook.ID,
			EventType: event.EventType,
			EventID:   event.EventID,
			Payload:   models.JSONMap(event.Payload),
			Status:    models.StatusPending,
		})
	}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(deliveries, createBatchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create deliveries for event %s: %w", event.EventID, err)
	}

	metrics.DeliveriesCreatedTotal.Add(float64(len(deliveries)))
	p.logger.Info("Queued deliveries for event",
		zap.String("event_type", event.EventType),
		zap.String("event_id", event.EventID.String()),
		zap.Int("delivery_count", len(deliveries)),
	)
	return len(deliveries), nil
}
