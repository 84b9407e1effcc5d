package models

// EventWildcard subscribes a webhook to every event type.
const EventWildcard = "*"

// TestPingEvent is the synthetic event type used for operator connectivity checks.
const TestPingEvent = "test.ping"

// Known event types emitted by the platform's domain services.
const (
	MemberCreated NotificationEventType = "member.created"
	MemberUpdated NotificationEventType = "member.updated"
	MemberDeleted NotificationEventType = "member.deleted"

	SubscriptionCreated   NotificationEventType = "subscription.created"
	SubscriptionRenewed   NotificationEventType = "subscription.renewed"
	SubscriptionCancelled NotificationEventType = "subscription.cancelled"
	SubscriptionFrozen    NotificationEventType = "subscription.frozen"
	SubscriptionUnfrozen  NotificationEventType = "subscription.unfrozen"

	InvoiceCreated NotificationEventType = "invoice.created"
	InvoicePaid    NotificationEventType = "invoice.paid"
	InvoiceVoided  NotificationEventType = "invoice.voided"

	BookingCreated   NotificationEventType = "booking.created"
	BookingConfirmed NotificationEventType = "booking.confirmed"
	BookingCancelled NotificationEventType = "booking.cancelled"
	BookingCompleted NotificationEventType = "booking.completed"
	BookingNoShow    NotificationEventType = "booking.no_show"

	LeadCreated       NotificationEventType = "lead.created"
	LeadStatusChanged NotificationEventType = "lead.status_changed"
	LeadConverted     NotificationEventType = "lead.converted"
)

// NotificationEventType is a dot-namespaced event type string.
type NotificationEventType string

var knownEventTypes = map[NotificationEventType]struct{}{
	MemberCreated: {}, MemberUpdated: {}, MemberDeleted: {},
	SubscriptionCreated: {}, SubscriptionRenewed: {}, SubscriptionCancelled: {},
	SubscriptionFrozen: {}, SubscriptionUnfrozen: {},
	InvoiceCreated: {}, InvoicePaid: {}, InvoiceVoided: {},
	BookingCreated: {}, BookingConfirmed: {}, BookingCancelled: {},
	BookingCompleted: {}, BookingNoShow: {},
	LeadCreated: {}, LeadStatusChanged: {}, LeadConverted: {},
	TestPingEvent: {},
}

// IsKnownEventType reports whether name is a recognized event type.
// The wildcard is not an event type; callers check it separately.
func IsKnownEventType(name string) bool {
	_, ok := knownEventTypes[NotificationEventType(name)]
	return ok
}
