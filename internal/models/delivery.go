package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the delivery state machine:
// pending -> delivering -> delivered | failed
// failed -> delivering (retry due) | exhausted (budget spent)
type DeliveryStatus string

const (
	StatusPending    DeliveryStatus = "pending"
	StatusDelivering DeliveryStatus = "delivering"
	StatusDelivered  DeliveryStatus = "delivered"
	StatusFailed     DeliveryStatus = "failed"
	StatusExhausted  DeliveryStatus = "exhausted"
)

// IsTerminal reports whether the status admits no further automatic attempts.
func (s DeliveryStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusExhausted
}

// Delivery is one pending or completed notification of one event to one
// webhook. An event matching N webhooks produces N delivery rows, all
// sharing EventID.
type Delivery struct {
	ID               uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	WebhookID        uuid.UUID      `gorm:"type:uuid;not null;index:idx_deliveries_webhook" json:"webhook_id"`
	EventType        string         `gorm:"not null" json:"event_type"`
	EventID          uuid.UUID      `gorm:"type:uuid;not null;index:idx_deliveries_event" json:"event_id"`
	Payload          JSONMap        `gorm:"type:jsonb;not null" json:"payload"`
	Status           DeliveryStatus `gorm:"not null;default:'pending';index:idx_deliveries_status" json:"status"`
	AttemptCount     int            `gorm:"not null;default:0" json:"attempt_count"`
	LastResponseCode *int           `json:"last_response_code"`
	LastResponseBody *string        `json:"last_response_body"`
	LastError        *string        `json:"last_error"`
	NextRetryAt      *time.Time     `json:"next_retry_at"`
	DeliveredAt      *time.Time     `json:"delivered_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (Delivery) TableName() string {
	return "webhook_deliveries"
}

// DeliveryStats aggregates delivery counts by status for one webhook.
type DeliveryStats struct {
	Total     int64 `json:"total"`
	Delivered int64 `json:"delivered"`
	Pending   int64 `json:"pending"`
	Failed    int64 `json:"failed"`
	Exhausted int64 `json:"exhausted"`
}
