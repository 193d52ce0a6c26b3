package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bellasuite/notify/internal/domain"
)

// IngestInput is one provider callback, already pulled out of the
// provider's envelope by the HTTP receiver.
type IngestInput struct {
	Provider        string
	ProviderEventID string
	EventType       string // provider's raw event name
	Recipient       string
	ProviderMsgID   string
	Payload         json.RawMessage
}

// IngestResult reports what happened to one event.
type IngestResult struct {
	Accepted  bool   `json:"accepted"`
	Duplicate bool   `json:"duplicate"`
	EventID   string `json:"event_id,omitempty"`
}

// Ingestor applies provider callbacks exactly once.
type Ingestor struct {
	repo       Repository
	suppressor Suppressor
}

// NewIngestor wires the event store to the suppression service.
func NewIngestor(repo Repository, suppressor Suppressor) *Ingestor {
	return &Ingestor{repo: repo, suppressor: suppressor}
}

// Ingest stores and processes one event. A redelivered event is
// recognized through the unique (provider, providerEventId) pair and
// reported as a duplicate with no side effects. Failures applying side
// effects leave the event stored but unprocessed, with the error on
// record.
func (i *Ingestor) Ingest(ctx context.Context, in IngestInput) (IngestResult, error) {
	if in.Provider == "" {
		return IngestResult{}, fmt.Errorf("provider is required")
	}

	evt := &domain.WebhookEvent{
		ID:              uuid.NewString(),
		Provider:        in.Provider,
		ProviderEventID: in.ProviderEventID,
		EventType:       domain.ClassifyWebhookEvent(in.EventType),
		ProviderMsgID:   in.ProviderMsgID,
		Recipient:       strings.ToLower(strings.TrimSpace(in.Recipient)),
		Payload:         in.Payload,
		ReceivedAt:      time.Now(),
	}

	// An event without a provider id cannot be deduplicated; store it
	// flagged rather than guessing.
	if in.ProviderEventID == "" {
		evt.ProviderEventID = "generated:" + evt.ID
		inserted, err := i.repo.InsertEvent(ctx, evt)
		if err != nil {
			return IngestResult{}, fmt.Errorf("store webhook event: %w", err)
		}
		if !inserted {
			return IngestResult{}, fmt.Errorf("store webhook event: generated id %s already exists", evt.ProviderEventID)
		}
		if err := i.repo.MarkProcessingError(ctx, evt.ID, "missing provider event id"); err != nil {
			return IngestResult{}, err
		}
		return IngestResult{Accepted: true, EventID: evt.ID}, nil
	}

	inserted, err := i.repo.InsertEvent(ctx, evt)
	if err != nil {
		return IngestResult{}, fmt.Errorf("store webhook event: %w", err)
	}
	if !inserted {
		return IngestResult{Accepted: true, Duplicate: true}, nil
	}

	if procErr := i.applySideEffects(ctx, evt); procErr != nil {
		if err := i.repo.MarkProcessingError(ctx, evt.ID, procErr.Error()); err != nil {
			return IngestResult{}, err
		}
		return IngestResult{Accepted: true, EventID: evt.ID}, nil
	}
	if err := i.repo.MarkProcessed(ctx, evt.ID, time.Now()); err != nil {
		return IngestResult{}, err
	}
	return IngestResult{Accepted: true, EventID: evt.ID}, nil
}

func (i *Ingestor) applySideEffects(ctx context.Context, evt *domain.WebhookEvent) error {
	// SMS callbacks carry a phone number where email providers carry an
	// address; the suppression entry must land in the right column.
	email, phone := splitRecipient(evt.Recipient)

	switch evt.EventType {
	case domain.EventBounced:
		if evt.Recipient == "" {
			return fmt.Errorf("bounce event without a recipient")
		}
		if _, err := i.suppressor.Suppress(ctx, email, phone, domain.SuppressBounce,
			fmt.Sprintf("bounce reported by %s", evt.Provider), domain.SuppressionSourceWebhook); err != nil {
			return fmt.Errorf("suppress bounced recipient: %w", err)
		}
	case domain.EventComplained:
		if evt.Recipient == "" {
			return fmt.Errorf("complaint event without a recipient")
		}
		if _, err := i.suppressor.Suppress(ctx, email, phone, domain.SuppressSpam,
			fmt.Sprintf("complaint reported by %s", evt.Provider), domain.SuppressionSourceWebhook); err != nil {
			return fmt.Errorf("suppress complaining recipient: %w", err)
		}
	case domain.EventDelivered, domain.EventFailed:
		// Correlation below is the only side effect.
	default:
		return fmt.Errorf("unrecognized event type %q", evt.EventType)
	}

	if evt.ProviderMsgID != "" {
		notifID, err := i.repo.RecordDeliveryOutcome(ctx, evt.Provider, evt.ProviderMsgID, evt.EventType, evt.Recipient)
		if err != nil {
			return fmt.Errorf("correlate provider message %s: %w", evt.ProviderMsgID, err)
		}
		evt.NotificationID = notifID
	}
	return nil
}

func splitRecipient(recipient string) (email, phone string) {
	if strings.Contains(recipient, "@") {
		return recipient, ""
	}
	return "", recipient
}

// ListEvents returns stored events for the admin API.
func (i *Ingestor) ListEvents(ctx context.Context, processed *bool, limit, offset int) ([]*domain.WebhookEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return i.repo.ListEvents(ctx, processed, limit, offset)
}

// Cleanup purges processed events older than the retention window.
func (i *Ingestor) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		olderThanDays = 30
	}
	return i.repo.DeleteProcessedBefore(ctx, time.Now().AddDate(0, 0, -olderThanDays))
}
