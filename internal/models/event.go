package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is the normalized record domain services hand to the publisher.
// EventID correlates every delivery row spawned by one event occurrence.
type Event struct {
	EventType  string                 `json:"event_type"`
	EventID    uuid.UUID              `json:"event_id"`
	TenantID   uuid.UUID              `json:"tenant_id"`
	Payload    map[string]interface{} `json:"payload"`
	OccurredAt time.Time              `json:"occurred_at"`
}
