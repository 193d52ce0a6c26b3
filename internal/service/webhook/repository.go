package webhook

import (
	"context"
	"time"

	"github.com/bellasuite/notify/internal/domain"
)

// Repository is the persistence boundary for webhook events and the
// notification correlation they drive.
type Repository interface {
	// InsertEvent stores the event unless its (provider, providerEventId)
	// pair already exists. Returns false on the duplicate.
	InsertEvent(ctx context.Context, evt *domain.WebhookEvent) (bool, error)

	// MarkProcessed flips the processed flag once side effects applied.
	MarkProcessed(ctx context.Context, id string, at time.Time) error

	// MarkProcessingError records why side effects could not be applied,
	// leaving the event unprocessed for later inspection.
	MarkProcessingError(ctx context.Context, id, errMsg string) error

	// RecordDeliveryOutcome annotates the notification matching the
	// provider message id with the delivery result. Returns the matched
	// notification id, or empty when nothing correlates.
	RecordDeliveryOutcome(ctx context.Context, provider, providerMsgID string, outcome domain.WebhookEventType, detail string) (string, error)

	ListEvents(ctx context.Context, processed *bool, limit, offset int) ([]*domain.WebhookEvent, error)

	// DeleteProcessedBefore purges processed events past retention.
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Suppressor records a suppression entry. Satisfied by the consent
// service.
type Suppressor interface {
	Suppress(ctx context.Context, email, phone string, st domain.SuppressionType, reason string, source domain.SuppressionSource) (*domain.SuppressionEntry, error)
}
