package domain

import (
	"encoding/json"
	"time"
)

// NotificationType is the delivery medium for a notification.
type NotificationType string

const (
	TypeEmail NotificationType = "email"
	TypeSMS   NotificationType = "sms"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	return t == TypeEmail || t == TypeSMS
}

// Channel is the semantic category of a notification. Channels drive
// template selection, consent checks, and per-channel retry policy.
type Channel string

const (
	ChannelAppointmentReminder     Channel = "appointment_reminder"
	ChannelAppointmentConfirmation Channel = "appointment_confirmation"
	ChannelAppointmentCancelled    Channel = "appointment_cancelled"
	ChannelReviewRequest           Channel = "review_request"
	ChannelMarketingPromo          Channel = "marketing_promo"
)

// NotificationStatus tracks a request through the queue state machine:
//
//	pending → sending → {sent | failed}
//	pending|sending → cancelled
//
// sent, failed, and cancelled are terminal.
type NotificationStatus string

const (
	StatusPending   NotificationStatus = "pending"
	StatusSending   NotificationStatus = "sending"
	StatusSent      NotificationStatus = "sent"
	StatusFailed    NotificationStatus = "failed"
	StatusCancelled NotificationStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s NotificationStatus) Terminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

// NotificationRequest is one unit of outbound work.
type NotificationRequest struct {
	ID             string             `json:"id" db:"id"`
	Type           NotificationType   `json:"type" db:"type"`
	Channel        Channel            `json:"channel" db:"channel"`
	CustomerID     string             `json:"customer_id" db:"customer_id"`
	LocationID     string             `json:"location_id,omitempty" db:"location_id"`
	Email          string             `json:"email,omitempty" db:"email"`
	Phone          string             `json:"phone,omitempty" db:"phone"`
	TemplateData   json.RawMessage    `json:"template_data,omitempty" db:"template_data"`
	Subject        string             `json:"subject,omitempty" db:"subject"`
	Body           string             `json:"body,omitempty" db:"body"`
	DedupeKey      string             `json:"dedupe_key,omitempty" db:"dedupe_key"`
	EntityID       string             `json:"entity_id,omitempty" db:"entity_id"` // correlating appointment/booking id
	ScheduledFor   time.Time          `json:"scheduled_for" db:"scheduled_for"`
	Status         NotificationStatus `json:"status" db:"status"`
	Attempts       int                `json:"attempts" db:"attempts"`
	MaxAttempts    int                `json:"max_attempts" db:"max_attempts"`
	LastError      string             `json:"last_error,omitempty" db:"last_error"`
	ProviderMsgID  string             `json:"provider_message_id,omitempty" db:"provider_message_id"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
	LastAttemptAt  *time.Time         `json:"last_attempt_at,omitempty" db:"last_attempt_at"`
	SentAt         *time.Time         `json:"sent_at,omitempty" db:"sent_at"`
	FailedAt       *time.Time         `json:"failed_at,omitempty" db:"failed_at"`
	CancelledAt    *time.Time         `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancelReason   string             `json:"cancel_reason,omitempty" db:"cancel_reason"`
}

// Recipient returns the delivery address for the request's type.
func (n *NotificationRequest) Recipient() string {
	if n.Type == TypeSMS {
		return n.Phone
	}
	return n.Email
}
