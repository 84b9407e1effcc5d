package models

import (
	"time"

	"github.com/google/uuid"
)

// Webhook is a tenant-scoped subscription to outbound event notifications.
// The secret is an HMAC key generated at creation time and rotated via the
// registry; it never changes as a side effect of other updates.
type Webhook struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	TenantID        uuid.UUID  `gorm:"type:uuid;not null;index:idx_webhooks_tenant" json:"tenant_id"`
	Name            string     `gorm:"not null" json:"name"`
	URL             string     `gorm:"not null" json:"url"`
	Secret          string     `gorm:"not null" json:"-"`
	Events          StringList `gorm:"type:jsonb;not null" json:"events"`
	Headers         HeaderMap  `gorm:"type:jsonb" json:"headers,omitempty"`
	RateLimitPerMin int        `gorm:"not null;default:60" json:"rate_limit_per_min"`
	IsActive        bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Webhook) TableName() string {
	return "webhooks"
}

// SubscribesTo reports whether the webhook's event patterns cover eventType.
// Matching is exact or the single wildcard "*"; case-sensitive, no globbing.
func (w *Webhook) SubscribesTo(eventType string) bool {
	for _, pattern := range w.Events {
		if pattern == EventWildcard || pattern == eventType {
			return true
		}
	}
	return false
}
