// Package registry owns webhook subscription records: validation, CRUD and
// the fan-out lookup used by the event publisher.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/liyaqa/webhook-delivery/internal/apperrors"
	"github.com/liyaqa/webhook-delivery/internal/models"
	"github.com/liyaqa/webhook-delivery/internal/signature"
)

type Registry struct {
	db     *gorm.DB
	signer signature.Signer
	logger *zap.Logger
}

func NewRegistry(db *gorm.DB, signer signature.Signer, logger *zap.Logger) *Registry {
	return &Registry{
		db:     db,
		signer: signer,
		logger: logger,
	}
}

// CreateWebhookInput carries the subscriber-supplied fields for Create.
type CreateWebhookInput struct {
	Name            string            `json:"name"`
	URL             string            `json:"url"`
	Events          []string          `json:"events"`
	Headers         map[string]string `json:"headers"`
	RateLimitPerMin *int              `json:"rate_limit_per_min"`
}

// UpdateWebhookInput carries partial-update fields; nil means unchanged.
type UpdateWebhookInput struct {
	Name            *string           `json:"name"`
	URL             *string           `json:"url"`
	Events          []string          `json:"events"`
	Headers         map[string]string `json:"headers"`
	RateLimitPerMin *int              `json:"rate_limit_per_min"`
}

// Create validates the input, generates a fresh secret and persists the
// subscription as active.
func (r *Registry) Create(ctx context.Context, tenantID uuid.UUID, input CreateWebhookInput) (*models.Webhook, error) {
	if err := validateURL(input.URL); err != nil {
		return nil, err
	}
	if err := validateEvents(input.Events); err != nil {
		return nil, err
	}

	secret, err := r.signer.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}

	webhook := &models.Webhook{
		ID:              uuid.New(),
		TenantID:        tenantID,
		Name:            input.Name,
		URL:             input.URL,
		Secret:          secret,
		Events:          models.StringList(input.Events),
		Headers:         models.HeaderMap(input.Headers),
		RateLimitPerMin: 60,
		IsActive:        true,
	}
	if input.RateLimitPerMin != nil {
		webhook.RateLimitPerMin = *input.RateLimitPerMin
	}

	if err := r.db.WithContext(ctx).Create(webhook).Error; err != nil {
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}

	r.logger.Info("Webhook created",
		zap.String("webhook_id", webhook.ID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.String("url", webhook.URL),
	)
	return webhook, nil
}

// Get returns the tenant's webhook by id.
func (r *Registry) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Webhook, error) {
	var webhook models.Webhook
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&webhook).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("webhook", id.String())
		}
		return nil, fmt.Errorf("failed to load webhook: %w", err)
	}
	return &webhook, nil
}

// List returns the tenant's webhooks, newest first.
func (r *Registry) List(ctx context.Context, tenantID uuid.UUID) ([]models.Webhook, error) {
	var webhooks []models.Webhook
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&webhooks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	return webhooks, nil
}

// Update applies the provided fields, re-validating any changed url or
// event list. Fields left nil keep their current value.
func (r *Registry) Update(ctx context.Context, tenantID, id uuid.UUID, input UpdateWebhookInput) (*models.Webhook, error) {
	webhook, err := r.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if input.URL != nil {
		if err := validateURL(*input.URL); err != nil {
			return nil, err
		}
		webhook.URL = *input.URL
	}
	if input.Events != nil {
		if err := validateEvents(input.Events); err != nil {
			return nil, err
		}
		webhook.Events = models.StringList(input.Events)
	}
	if input.Name != nil {
		webhook.Name = *input.Name
	}
	if input.Headers != nil {
		webhook.Headers = models.HeaderMap(input.Headers)
	}
	if input.RateLimitPerMin != nil {
		webhook.RateLimitPerMin = *input.RateLimitPerMin
	}
	webhook.UpdatedAt = time.Now().UTC()

	if err := r.db.WithContext(ctx).Save(webhook).Error; err != nil {
		return nil, fmt.Errorf("failed to update webhook: %w", err)
	}
	return webhook, nil
}

// Activate makes the webhook eligible for delivery again.
func (r *Registry) Activate(ctx context.Context, tenantID, id uuid.UUID) (*models.Webhook, error) {
	return r.setActive(ctx, tenantID, id, true)
}

// Deactivate stops future deliveries without deleting configuration.
// In-flight attempts are not cancelled.
func (r *Registry) Deactivate(ctx context.Context, tenantID, id uuid.UUID) (*models.Webhook, error) {
	return r.setActive(ctx, tenantID, id, false)
}

func (r *Registry) setActive(ctx context.Context, tenantID, id uuid.UUID, active bool) (*models.Webhook, error) {
	webhook, err := r.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	webhook.IsActive = active
	webhook.UpdatedAt = time.Now().UTC()
	if err := r.db.WithContext(ctx).Save(webhook).Error; err != nil {
		return nil, fmt.Errorf("failed to update webhook: %w", err)
	}

	r.logger.Info("Webhook active flag changed",
		zap.String("webhook_id", id.String()),
		zap.Bool("is_active", active),
	)
	return webhook, nil
}

// RegenerateSecret replaces the HMAC key. Deliveries already signed with
// the old secret are unaffected.
func (r *Registry) RegenerateSecret(ctx context.Context, tenantID, id uuid.UUID) (*models.Webhook, error) {
	webhook, err := r.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	secret, err := r.signer.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}

	webhook.Secret = secret
	webhook.UpdatedAt = time.Now().UTC()
	if err := r.db.WithContext(ctx).Save(webhook).Error; err != nil {
		return nil, fmt.Errorf("failed to update webhook: %w", err)
	}

	r.logger.Info("Webhook secret regenerated",
		zap.String("webhook_id", id.String()),
	)
	return webhook, nil
}

// Delete hard-removes the webhook and cascades to its deliveries in one
// transaction, so no delivery row is left referencing a missing webhook.
func (r *Registry) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	webhook, err := r.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("webhook_id = ?", webhook.ID).Delete(&models.Delivery{}).Error; err != nil {
			return fmt.Errorf("failed to delete deliveries: %w", err)
		}
		if err := tx.Delete(webhook).Error; err != nil {
			return fmt.Errorf("failed to delete webhook: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("Webhook deleted",
		zap.String("webhook_id", id.String()),
		zap.String("tenant_id", tenantID.String()),
	)
	return nil
}

// FindActiveByEventType returns the tenant's active webhooks whose pattern
// list covers eventType, exact match union wildcard. This is the fan-out
// lookup; pattern matching happens in application code because the pattern
// list is a JSON column.
func (r *Registry) FindActiveByEventType(ctx context.Context, tenantID uuid.UUID, eventType string) ([]models.Webhook, error) {
	var candidates []models.Webhook
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load active webhooks: %w", err)
	}

	matched := make([]models.Webhook, 0, len(candidates))
	for _, webhook := range candidates {
		if webhook.SubscribesTo(eventType) {
			matched = append(matched, webhook)
		}
	}
	return matched, nil
}
