// Package sender holds the delivery-provider adapters. The queue
// worker talks to the Sender interface only; the SES and SMS carrier
// adapters translate its messages into provider calls and map provider
// errors onto the failure classification.
package sender

import (
	"context"
	"time"

	"github.com/bellasuite/notify/internal/domain"
)

// Message is one outbound notification, already rendered.
type Message struct {
	NotificationID string
	Type           domain.NotificationType
	Recipient      string
	Subject        string
	Body           string
}

// Result is the provider's answer. A failed send carries the error
// code the provider gave so the worker can classify it; Err holds the
// transport-level cause when there is one.
type Result struct {
	Success       bool
	ProviderMsgID string
	ErrorCode     string
	Err           error
	SentAt        time.Time
}

// FailureType classifies a failed result for retry handling.
func (r *Result) FailureType() domain.FailureType {
	if r.Success {
		return ""
	}
	return domain.ClassifyProviderCode(r.ErrorCode)
}

// Sender delivers one message. Implementations must honor ctx
// cancellation; the worker bounds every call with a send timeout.
type Sender interface {
	Send(ctx context.Context, msg *Message) (*Result, error)
	Provider() string
}
