// Package dispatcher is the delivery state machine: it pulls due delivery
// rows, claims them, invokes the HTTP transport and records the outcome
// with retry-with-backoff up to the configured attempt budget.
//
// pending -> delivering -> delivered | failed
// failed  -> delivering (retry due) | exhausted (budget spent)
//
// Delivery failures never surface as errors from this package; they are
// captured as delivery state. Returned errors mean persistence problems.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/liyaqa/webhook-delivery/internal/apperrors"
	"github.com/liyaqa/webhook-delivery/internal/config"
	"github.com/liyaqa/webhook-delivery/internal/metrics"
	"github.com/liyaqa/webhook-delivery/internal/models"
	"github.com/liyaqa/webhook-delivery/internal/transport"
)

type Dispatcher struct {
	db        *gorm.DB
	transport *transport.Client
	cfg       *config.DispatcherConfig
	logger    *zap.Logger
}

func NewDispatcher(db *gorm.DB, client *transport.Client, cfg *config.DispatcherConfig, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		db:        db,
		transport: client,
		cfg:       cfg,
		logger:    logger,
	}
}

// ProcessPendingDeliveries attempts up to batchSize never-attempted
// deliveries, oldest first, and returns the number attempted. One
// delivery's failure never aborts the rest of the batch.
func (d *Dispatcher) ProcessPendingDeliveries(ctx context.Context, batchSize int) (int, error) {
	deliveries, err := findPendingDeliveries(ctx, d.db, batchSize)
	if err != nil {
		return 0, err
	}
	return d.processBatch(ctx, deliveries), nil
}

// ProcessRetries attempts up to batchSize failed deliveries whose retry is
// due, oldest due first, and returns the number attempted.
func (d *Dispatcher) ProcessRetries(ctx context.Context, batchSize int) (int, error) {
	deliveries, err := findDueRetries(ctx, d.db, time.Now().UTC(), batchSize)
	if err != nil {
		return 0, err
	}
	return d.processBatch(ctx, deliveries), nil
}

func (d *Dispatcher) processBatch(ctx context.Context, deliveries []models.Delivery) int {
	attempted := 0
	for i := range deliveries {
		attempted++
		if err := d.ProcessDelivery(ctx, &deliveries[i]); err != nil {
			d.logger.Error("Failed to process delivery, continuing batch",
				zap.String("delivery_id", deliveries[i].ID.String()),
				zap.Error(err),
			)
		}
	}
	return attempted
}

// ProcessDelivery runs the single-attempt procedure. Calling it on a
// terminal delivery is a no-op. Errors indicate persistence failures only;
// HTTP and transport failures are recorded as delivery state.
func (d *Dispatcher) ProcessDelivery(ctx context.Context, delivery *models.Delivery) error {
	if delivery.Status.IsTerminal() {
		return nil
	}
	return d.attempt(ctx, delivery)
}

// attempt is the single-attempt procedure without the terminal guard;
// manual retry uses it to force one more attempt of an exhausted delivery.
func (d *Dispatcher) attempt(ctx context.Context, delivery *models.Delivery) error {
	var webhook models.Webhook
	err := d.db.WithContext(ctx).First(&webhook, "id = ?", delivery.WebhookID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The webhook is gone and cannot reappear, so retrying is
			// pointless: terminal immediately, visible to operators.
			return d.markExhausted(ctx, delivery, map[string]interface{}{
				"last_error": "webhook not found",
			})
		}
		return fmt.Errorf("failed to load webhook %s: %w", delivery.WebhookID, err)
	}

	// Claim before any network call so overlapping scans and other
	// instances skip this row.
	claimed, err := claimDelivery(ctx, d.db, delivery.ID, delivery.Status)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	delivery.Status = models.StatusDelivering
	delivery.AttemptCount++
	delivery.NextRetryAt = nil

	if !webhook.IsActive {
		// No network call, but the attempt counts against the budget.
		// The delivery stays schedulable so reactivating the webhook
		// before exhaustion resumes delivery.
		return d.recordFailure(ctx, delivery, nil, "", "webhook is inactive")
	}

	start := time.Now()
	result := d.transport.Deliver(ctx, &webhook, delivery)
	metrics.DeliveryAttemptDuration.Observe(time.Since(start).Seconds())

	if result.Success {
		return d.markDelivered(ctx, delivery, result)
	}
	return d.recordFailure(ctx, delivery, result.StatusCode, result.ResponseBody, result.Error)
}

func (d *Dispatcher) markDelivered(ctx context.Context, delivery *models.Delivery, result *transport.Result) error {
	now := time.Now().UTC()
	err := updateDelivery(ctx, d.db, delivery.ID, map[string]interface{}{
		"status":             models.StatusDelivered,
		"last_response_code": result.StatusCode,
		"last_response_body": result.ResponseBody,
		"last_error":         nil,
		"delivered_at":       now,
		"next_retry_at":      nil,
	})
	if err != nil {
		return err
	}

	delivery.Status = models.StatusDelivered
	delivery.DeliveredAt = &now
	metrics.DeliveryAttemptsTotal.WithLabelValues("delivered").Inc()
	d.logger.Info("Webhook delivered",
		zap.String("delivery_id", delivery.ID.String()),
		zap.String("event_type", delivery.EventType),
		zap.Int("attempt_count", delivery.AttemptCount),
	)
	return nil
}

func (d *Dispatcher) recordFailure(ctx context.Context, delivery *models.Delivery, statusCode *int, body, errMsg string) error {
	fields := map[string]interface{}{
		"last_error": errMsg,
	}
	if statusCode != nil {
		fields["last_response_code"] = statusCode
	}
	if body != "" {
		fields["last_response_body"] = body
	}

	if delivery.AttemptCount >= d.cfg.MaxAttempts {
		return d.markExhausted(ctx, delivery, fields)
	}

	nextRetryAt := time.Now().UTC().Add(NextRetryDelay(delivery.AttemptCount))
	fields["status"] = models.StatusFailed
	fields["next_retry_at"] = nextRetryAt
	if err := updateDelivery(ctx, d.db, delivery.ID, fields); err != nil {
		return err
	}

	delivery.Status = models.StatusFailed
	delivery.NextRetryAt = &nextRetryAt
	metrics.DeliveryAttemptsTotal.WithLabelValues("failed").Inc()
	d.logger.Warn("Webhook delivery failed, retry scheduled",
		zap.String("delivery_id", delivery.ID.String()),
		zap.Int("attempt_count", delivery.AttemptCount),
		zap.Time("next_retry_at", nextRetryAt),
		zap.String("last_error", errMsg),
	)
	return nil
}

func (d *Dispatcher) markExhausted(ctx context.Context, delivery *models.Delivery, fields map[string]interface{}) error {
	fields["status"] = models.StatusExhausted
	fields["next_retry_at"] = nil
	if err := updateDelivery(ctx, d.db, delivery.ID, fields); err != nil {
		return err
	}

	delivery.Status = models.StatusExhausted
	delivery.NextRetryAt = nil
	metrics.DeliveryAttemptsTotal.WithLabelValues("exhausted").Inc()
	d.logger.Warn("Webhook delivery exhausted, no further automatic retries",
		zap.String("delivery_id", delivery.ID.String()),
		zap.Int("attempt_count", delivery.AttemptCount),
	)
	return nil
}

// SendTestWebhook creates a synthetic delivery for the tenant's webhook and
// processes it immediately, bypassing the scheduled scans.
func (d *Dispatcher) SendTestWebhook(ctx context.Context, tenantID, webhookID uuid.UUID, eventType string) (*models.Delivery, error) {
	if eventType == "" {
		eventType = models.TestPingEvent
	}

	var webhook models.Webhook
	err := d.db.WithContext(ctx).
		First(&webhook, "id = ? AND tenant_id = ?", webhookID, tenantID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("webhook", webhookID.String())
		}
		return nil, fmt.Errorf("failed to load webhook: %w", err)
	}

	delivery := &models.Delivery{
		ID:        uuid.New(),
		WebhookID: webhook.ID,
		EventType: eventType,
		EventID:   uuid.New(),
		Payload: models.JSONMap{
			"event":      eventType,
			"webhook_id": webhook.ID.String(),
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		},
		Status: models.StatusPending,
	}
	if err := d.db.WithContext(ctx).Create(delivery).Error; err != nil {
		return nil, fmt.Errorf("failed to create test delivery: %w", err)
	}

	if err := d.ProcessDelivery(ctx, delivery); err != nil {
		return nil, err
	}
	return getDelivery(ctx, d.db, delivery.ID)
}

// RetryDelivery forces one more attempt of a failed or exhausted delivery.
// The attempt count keeps incrementing; the pending retry slot is cleared
// by the claim.
func (d *Dispatcher) RetryDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.Delivery, error) {
	delivery, err := getDelivery(ctx, d.db, deliveryID)
	if err != nil {
		return nil, err
	}

	if delivery.Status != models.StatusFailed && delivery.Status != models.StatusExhausted {
		return nil, apperrors.InvalidStatef(
			"delivery %s is %s; only failed or exhausted deliveries can be retried manually",
			deliveryID, delivery.Status,
		)
	}

	if err := d.attempt(ctx, delivery); err != nil {
		return nil, err
	}
	return getDelivery(ctx, d.db, deliveryID)
}

// RecoverStuckDeliveries re-queues deliveries stuck in delivering past the
// configured timeout and returns how many were swept.
func (d *Dispatcher) RecoverStuckDeliveries(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-d.cfg.StuckTimeout)
	swept, err := recoverStuck(ctx, d.db, cutoff)
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		d.logger.Warn("Re-queued deliveries stuck in delivering",
			zap.Int64("count", swept),
			zap.Duration("stuck_timeout", d.cfg.StuckTimeout),
		)
	}
	return swept, nil
}

// GetDelivery returns one delivery by id.
func (d *Dispatcher) GetDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.Delivery, error) {
	return getDelivery(ctx, d.db, deliveryID)
}

// GetDeliveryHistory returns a page of a webhook's deliveries, newest
// first, plus whether more pages exist.
func (d *Dispatcher) GetDeliveryHistory(ctx context.Context, webhookID uuid.UUID, limit, offset int) ([]models.Delivery, bool, error) {
	return listDeliveries(ctx, d.db, webhookID, limit, offset)
}

// GetDeliveryStats aggregates the webhook's delivery counts by status.
func (d *Dispatcher) GetDeliveryStats(ctx context.Context, webhookID uuid.UUID) (*models.DeliveryStats, error) {
	stats := &models.DeliveryStats{}

	counts := []struct {
		status models.DeliveryStatus
		target *int64
	}{
		{models.StatusDelivered, &stats.Delivered},
		{models.StatusPending, &stats.Pending},
		{models.StatusFailed, &stats.Failed},
		{models.StatusExhausted, &stats.Exhausted},
	}
	for _, c := range counts {
		count, err := countByStatus(ctx, d.db, webhookID, c.status)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s deliveries: %w", c.status, err)
		}
		*c.target = count
	}

	err := d.db.WithContext(ctx).Model(&models.Delivery{}).
		Where("webhook_id = ?", webhookID).
		Count(&stats.Total).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count deliveries: %w", err)
	}
	return stats, nil
}
