package domain

import (
	"strings"
	"time"
)

// FailureType is the closed classification of a send failure. Retry
// eligibility and dead-letter handling branch on this tag, never on raw
// provider error text.
type FailureType string

const (
	FailureHardBounce       FailureType = "hard_bounce"
	FailureSoftBounce       FailureType = "soft_bounce"
	FailureRateLimited      FailureType = "rate_limited"
	FailureInvalidRecipient FailureType = "invalid_recipient"
	FailureProviderError    FailureType = "provider_error"
	FailureTimeout          FailureType = "timeout"
	FailureUnknown          FailureType = "unknown"
)

// Permanent reports whether the failure can never succeed on retry.
// Permanent failures bypass remaining retry budget and go straight to
// the dead-letter store.
func (f FailureType) Permanent() bool {
	return f == FailureHardBounce || f == FailureInvalidRecipient
}

// RetryEligible reports whether a dead-lettered request with this failure
// type may be manually retried. Permanently-bad recipients need the
// address fixed first, which manual retry allows via an updated recipient,
// so only hard bounces are excluded outright.
func (f FailureType) RetryEligible() bool {
	return f != FailureHardBounce
}

// ClassifyProviderCode maps a provider error code to a FailureType.
// Codes follow SMTP-ish conventions: 5xx permanent, 4xx transient.
func ClassifyProviderCode(code string) FailureType {
	switch {
	case code == "":
		return FailureUnknown
	case code == "429" || strings.EqualFold(code, "rate_limited"):
		return FailureRateLimited
	case strings.EqualFold(code, "invalid_recipient"):
		return FailureInvalidRecipient
	case code == "553" || code == "550":
		return FailureHardBounce
	case strings.HasPrefix(code, "5"):
		return FailureHardBounce
	case strings.HasPrefix(code, "4"):
		return FailureSoftBounce
	case strings.EqualFold(code, "timeout"):
		return FailureTimeout
	default:
		return FailureProviderError
	}
}

// ResolutionAction enumerates how an admin closed out a dead-letter item.
type ResolutionAction string

const (
	ResolveManualRetry    ResolutionAction = "manual_retry"
	ResolveAddressUpdated ResolutionAction = "address_updated"
	ResolveSuppressed     ResolutionAction = "suppressed"
	ResolveIgnored        ResolutionAction = "ignored"
)

// DeadLetterItem is a snapshot of a permanently-failed NotificationRequest,
// parked for manual inspection. The queue never mutates an item after
// creating it; only admin retry/resolve actions do.
type DeadLetterItem struct {
	ID             string           `json:"id" db:"id"`
	NotificationID string           `json:"notification_id" db:"notification_id"`
	Type           NotificationType `json:"type" db:"type"`
	Channel        Channel          `json:"channel" db:"channel"`
	CustomerID     string           `json:"customer_id" db:"customer_id"`
	Recipient      string           `json:"recipient" db:"recipient"`
	Subject        string           `json:"subject,omitempty" db:"subject"`
	Body           string           `json:"body,omitempty" db:"body"`
	FailureType    FailureType      `json:"failure_type" db:"failure_type"`
	LastError      string           `json:"last_error" db:"last_error"`
	Attempts       int              `json:"attempts" db:"attempts"`
	RetryEligible  bool             `json:"retry_eligible" db:"retry_eligible"`
	Resolved       bool             `json:"resolved" db:"resolved"`
	ResolvedAction ResolutionAction `json:"resolved_action,omitempty" db:"resolved_action"`
	ResolvedNotes  string           `json:"resolved_notes,omitempty" db:"resolved_notes"`
	ResolvedBy     string           `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt     *time.Time       `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}
