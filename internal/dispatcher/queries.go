package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/liyaqa/webhook-delivery/internal/apperrors"
	"github.com/liyaqa/webhook-delivery/internal/models"
)

// findPendingDeliveries selects up to limit never-attempted deliveries,
// oldest first.
func findPendingDeliveries(ctx context.Context, db *gorm.DB, limit int) ([]models.Delivery, error) {
	var deliveries []models.Delivery
	err := db.WithContext(ctx).
		Where("status = ?", models.StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&deliveries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query pending deliveries: %w", err)
	}
	return deliveries, nil
}

// findDueRetries selects up to limit failed deliveries whose retry is due,
// oldest due first.
func findDueRetries(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]models.Delivery, error) {
	var deliveries []models.Delivery
	err := db.WithContext(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", models.StatusFailed, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&deliveries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query due retries: %w", err)
	}
	return deliveries, nil
}

// claimDelivery transitions one row fromStatus -> delivering and increments
// the attempt count in a single conditional UPDATE. A zero rows-affected
// result means another scan tick or instance claimed it first; claims are
// the invariant that keeps two workers off the same delivery id.
func claimDelivery(ctx context.Context, db *gorm.DB, id uuid.UUID, fromStatus models.DeliveryStatus) (bool, error) {
	res := db.WithContext(ctx).Model(&models.Delivery{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(map[string]interface{}{
			"status":        models.StatusDelivering,
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"next_retry_at": nil,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim delivery %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func getDelivery(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := db.WithContext(ctx).First(&delivery, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("delivery", id.String())
		}
		return nil, fmt.Errorf("failed to load delivery: %w", err)
	}
	return &delivery, nil
}

func updateDelivery(ctx context.Context, db *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now().UTC()
	err := db.WithContext(ctx).Model(&models.Delivery{}).
		Where("id = ?", id).
		Updates(fields).Error
	if err != nil {
		return fmt.Errorf("failed to update delivery %s: %w", id, err)
	}
	return nil
}

// listDeliveries returns a page of a webhook's deliveries, newest first,
// plus whether more pages exist.
func listDeliveries(ctx context.Context, db *gorm.DB, webhookID uuid.UUID, limit, offset int) ([]models.Delivery, bool, error) {
	var deliveries []models.Delivery
	err := db.WithContext(ctx).
		Where("webhook_id = ?", webhookID).
		Order("created_at DESC").
		Limit(limit + 1).
		Offset(offset).
		Find(&deliveries).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to list deliveries: %w", err)
	}

	hasMore := len(deliveries) > limit
	if hasMore {
		deliveries = deliveries[:limit]
	}
	return deliveries, hasMore, nil
}

func countByStatus(ctx context.Context, db *gorm.DB, webhookID uuid.UUID, status models.DeliveryStatus) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&models.Delivery{}).
		Where("webhook_id = ? AND status = ?", webhookID, status).
		Count(&count).Error
	return count, err
}

// recoverStuck sweeps deliveries sitting in delivering past the timeout
// back to failed with an immediate retry slot, so a crash mid-flight shows
// up as a retryable failure instead of a row stuck forever.
func recoverStuck(ctx context.Context, db *gorm.DB, olderThan time.Time) (int64, error) {
	now := time.Now().UTC()
	res := db.WithContext(ctx).Model(&models.Delivery{}).
		Where("status = ? AND updated_at < ?", models.StatusDelivering, olderThan).
		Updates(map[string]interface{}{
			"status":        models.StatusFailed,
			"last_error":    "delivery attempt interrupted, re-queued by recovery sweep",
			"next_retry_at": now,
			"updated_at":    now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to recover stuck deliveries: %w", res.Error)
	}
	return res.RowsAffected, nil
}
