package domain

import (
	"encoding/json"
	"time"
)

// WebhookEventType is the normalized classification of a provider callback.
type WebhookEventType string

const (
	EventDelivered  WebhookEventType = "delivered"
	EventBounced    WebhookEventType = "bounced"
	EventComplained WebhookEventType = "complained"
	EventFailed     WebhookEventType = "failed"
	EventUnknown    WebhookEventType = "unknown"
)

// WebhookEvent is one provider callback. The (Provider, ProviderEventID)
// pair is unique, which makes re-delivery of the same event a no-op.
// Processed flips to true only once side effects (suppression inserts,
// notification status updates) have been applied.
type WebhookEvent struct {
	ID              string           `json:"id" db:"id"`
	Provider        string           `json:"provider" db:"provider"`
	ProviderEventID string           `json:"provider_event_id" db:"provider_event_id"`
	EventType       WebhookEventType `json:"event_type" db:"event_type"`
	NotificationID  string           `json:"notification_id,omitempty" db:"notification_id"`
	ProviderMsgID   string           `json:"provider_message_id,omitempty" db:"provider_message_id"`
	Recipient       string           `json:"recipient,omitempty" db:"recipient"`
	Processed       bool             `json:"processed" db:"processed"`
	ProcessingError string           `json:"processing_error,omitempty" db:"processing_error"`
	Payload         json.RawMessage  `json:"payload,omitempty" db:"payload"`
	ReceivedAt      time.Time        `json:"received_at" db:"received_at"`
	ProcessedAt     *time.Time       `json:"processed_at,omitempty" db:"processed_at"`
}

// ClassifyWebhookEvent normalizes a provider's event-type string.
// Only permanent bounces classify as EventBounced; a soft bounce is a
// transient delivery failure and must never suppress the recipient.
func ClassifyWebhookEvent(raw string) WebhookEventType {
	switch raw {
	case "delivered", "delivery", "Delivery":
		return EventDelivered
	case "bounced", "bounce", "Bounce", "hard_bounce":
		return EventBounced
	case "complained", "complaint", "Complaint", "spam", "spam_report":
		return EventComplained
	case "failed", "dropped", "undelivered", "rejected", "soft_bounce":
		return EventFailed
	default:
		return EventUnknown
	}
}
