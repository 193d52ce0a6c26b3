package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bellasuite/notify/internal/domain"
)

// WebhookRepo implements webhook.Repository against PostgreSQL.
type WebhookRepo struct{ db *sql.DB }

// NewWebhookRepo creates a Postgres-backed webhook event repository.
func NewWebhookRepo(db *sql.DB) *WebhookRepo { return &WebhookRepo{db: db} }

// InsertEvent relies on the unique (provider, provider_event_id) index:
// a redelivered event conflicts and inserts nothing.
func (r *WebhookRepo) InsertEvent(ctx context.Context, evt *domain.WebhookEvent) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO notify_webhook_events
			(id, provider, provider_event_id, event_type, notification_id,
			 provider_message_id, recipient, processed, processing_error, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, '', $8, $9)
		ON CONFLICT (provider, provider_event_id) DO NOTHING
	`, evt.ID, evt.Provider, evt.ProviderEventID, evt.EventType, evt.NotificationID,
		evt.ProviderMsgID, evt.Recipient, nullBytes(evt.Payload), evt.ReceivedAt)
	if err != nil {
		return false, fmt.Errorf("insert webhook event: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *WebhookRepo) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notify_webhook_events SET processed = true, processed_at = $2, processing_error = ''
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark webhook processed: %w", err)
	}
	return nil
}

func (r *WebhookRepo) MarkProcessingError(ctx context.Context, id, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notify_webhook_events SET processing_error = $2 WHERE id = $1
	`, id, errMsg)
	if err != nil {
		return fmt.Errorf("mark webhook error: %w", err)
	}
	return nil
}

// RecordDeliveryOutcome annotates the notification that produced the
// provider message id. Delivery results arrive after the row is
// terminal, so this writes the outcome fields without touching status.
// A bounce or complaint also annotates any unresolved dead letter
// created for the same notification.
func (r *WebhookRepo) RecordDeliveryOutcome(ctx context.Context, provider, providerMsgID string, outcome domain.WebhookEventType, detail string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		UPDATE notify_notifications
		SET last_error = CASE WHEN $2 IN ('bounced', 'complained', 'failed')
		                      THEN 'provider reported ' || $2 ELSE last_error END
		WHERE provider_message_id = $1
		RETURNING id
	`, providerMsgID, outcome).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("record delivery outcome: %w", err)
	}

	if outcome == domain.EventBounced || outcome == domain.EventComplained {
		_, err = r.db.ExecContext(ctx, `
			UPDATE notify_dead_letters SET last_error = 'provider reported ' || $2
			WHERE notification_id = $1 AND resolved = false
		`, id, outcome)
		if err != nil {
			return id, fmt.Errorf("annotate dead letter: %w", err)
		}
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE notify_webhook_events SET notification_id = $2
		WHERE provider = $3 AND provider_message_id = $1 AND notification_id = ''
	`, providerMsgID, id, provider)
	if err != nil {
		return id, fmt.Errorf("link webhook to notification: %w", err)
	}
	return id, nil
}

func (r *WebhookRepo) ListEvents(ctx context.Context, processed *bool, limit, offset int) ([]*domain.WebhookEvent, error) {
	query := `
		SELECT id, provider, provider_event_id, event_type, notification_id,
		       provider_message_id, recipient, processed, processing_error, payload,
		       received_at, processed_at
		FROM notify_webhook_events WHERE 1=1`
	args := []interface{}{}
	i := 1
	if processed != nil {
		query += fmt.Sprintf(" AND processed = $%d", i)
		args = append(args, *processed)
		i++
	}
	query += fmt.Sprintf(" ORDER BY received_at DESC LIMIT $%d OFFSET $%d", i, i+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list webhook events: %w", err)
	}
	defer rows.Close()

	var out []*domain.WebhookEvent
	for rows.Next() {
		var evt domain.WebhookEvent
		var payload sql.NullString
		var processedAt sql.NullTime
		if err := rows.Scan(&evt.ID, &evt.Provider, &evt.ProviderEventID, &evt.EventType,
			&evt.NotificationID, &evt.ProviderMsgID, &evt.Recipient, &evt.Processed,
			&evt.ProcessingError, &payload, &evt.ReceivedAt, &processedAt); err != nil {
			return nil, fmt.Errorf("scan webhook event: %w", err)
		}
		if payload.Valid {
			evt.Payload = []byte(payload.String)
		}
		evt.ProcessedAt = nullTimePtr(processedAt)
		out = append(out, &evt)
	}
	return out, rows.Err()
}

func (r *WebhookRepo) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notify_webhook_events WHERE processed = true AND received_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete processed webhook events: %w", err)
	}
	return res.RowsAffected()
}
