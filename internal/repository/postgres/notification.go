package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bellasuite/notify/internal/domain"
	"github.com/bellasuite/notify/internal/service/queue"
)

// NotificationStore implements queue.Store against PostgreSQL.
type NotificationStore struct{ db *sql.DB }

// NewNotificationStore creates a Postgres-backed queue store.
func NewNotificationStore(db *sql.DB) *NotificationStore { return &NotificationStore{db: db} }

const notificationColumns = `id, type, channel, customer_id, location_id, email, phone,
	template_data, subject, body, dedupe_key, entity_id, scheduled_for, status,
	attempts, max_attempts, last_error, provider_message_id, created_at,
	last_attempt_at, sent_at, failed_at, cancelled_at, cancel_reason`

func (r *NotificationStore) Insert(ctx context.Context, n *domain.NotificationRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notify_notifications
			(id, type, channel, customer_id, location_id, email, phone, template_data,
			 subject, body, dedupe_key, entity_id, scheduled_for, status, attempts,
			 max_attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, n.ID, n.Type, n.Channel, n.CustomerID, n.LocationID, n.Email, n.Phone,
		nullBytes(n.TemplateData), n.Subject, n.Body, n.DedupeKey, n.EntityID,
		n.ScheduledFor, n.Status, n.Attempts, n.MaxAttempts, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *NotificationStore) DedupeExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM notify_notifications
			WHERE dedupe_key = $1 AND status != 'cancelled'
		)
	`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("dedupe check: %w", err)
	}
	return exists, nil
}

// ClaimDue transitions due pending rows to sending in one statement.
// SKIP LOCKED keeps concurrent workers off each other's rows.
func (r *NotificationStore) ClaimDue(ctx context.Context, limit int, now time.Time) ([]*domain.NotificationRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE notify_notifications SET status = 'sending', last_attempt_at = $1
		WHERE id IN (
			SELECT id FROM notify_notifications
			WHERE status = 'pending' AND scheduled_for <= $1 AND attempts < max_attempts
			ORDER BY scheduled_for
			FOR UPDATE SKIP LOCKED
			LIMIT $2
		)
		RETURNING `+notificationColumns, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *NotificationStore) MarkSent(ctx context.Context, id, providerMsgID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notify_notifications
		SET status = 'sent', provider_message_id = $2, sent_at = $3
		WHERE id = $1 AND status = 'sending'
	`, id, providerMsgID, at)
	if err != nil {
		return false, fmt.Errorf("mark sent: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *NotificationStore) UpdateForRetry(ctx context.Context, id string, attempts int, lastError string, nextAttempt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notify_notifications
		SET status = 'pending', attempts = $2, last_error = $3, scheduled_for = $4
		WHERE id = $1 AND status = 'sending'
	`, id, attempts, lastError, nextAttempt)
	if err != nil {
		return false, fmt.Errorf("update for retry: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *NotificationStore) MarkFailed(ctx context.Context, id string, attempts int, lastError string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notify_notifications
		SET status = 'failed', attempts = $2, last_error = $3, failed_at = $4
		WHERE id = $1 AND status = 'sending'
	`, id, attempts, lastError, at)
	if err != nil {
		return false, fmt.Errorf("mark failed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *NotificationStore) Cancel(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notify_notifications
		SET status = 'cancelled', cancel_reason = $2, cancelled_at = $3
		WHERE id = $1 AND status IN ('pending', 'sending')
	`, id, reason, at)
	if err != nil {
		return false, fmt.Errorf("cancel notification: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *NotificationStore) GetByID(ctx context.Context, id string) (*domain.NotificationRequest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notify_notifications WHERE id = $1`, id)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (r *NotificationStore) List(ctx context.Context, f queue.ListFilter) ([]*domain.NotificationRequest, error) {
	query := `SELECT ` + notificationColumns + ` FROM notify_notifications WHERE 1=1`
	args := []interface{}{}
	i := 1
	if f.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", i)
		args = append(args, f.Status)
		i++
	}
	if f.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", i)
		args = append(args, f.Type)
		i++
	}
	if f.Channel != "" {
		query += fmt.Sprintf(" AND channel = $%d", i)
		args = append(args, f.Channel)
		i++
	}
	if f.CustomerID != "" {
		query += fmt.Sprintf(" AND customer_id = $%d", i)
		args = append(args, f.CustomerID)
		i++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", i, i+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *NotificationStore) Stats(ctx context.Context) (*queue.Stats, error) {
	s := &queue.Stats{}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'sending'),
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COUNT(*) FILTER (WHERE status = 'pending' AND scheduled_for <= NOW())
		FROM notify_notifications
	`).Scan(&s.Pending, &s.Sending, &s.Sent, &s.Failed, &s.Cancelled, &s.DueNow)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	return s, nil
}

func (r *NotificationStore) InsertDeadLetter(ctx context.Context, item *domain.DeadLetterItem) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notify_dead_letters
			(id, notification_id, type, channel, customer_id, recipient, subject, body,
			 failure_type, last_error, attempts, retry_eligible, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, false, $13)
	`, item.ID, item.NotificationID, item.Type, item.Channel, item.CustomerID,
		item.Recipient, item.Subject, item.Body, item.FailureType, item.LastError,
		item.Attempts, item.RetryEligible, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

// DeleteTerminalBefore purges terminal rows past retention in batches.
// Used by the cleanup worker, not the hot path.
func (r *NotificationStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time, batch int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM notify_notifications
		WHERE id IN (
			SELECT id FROM notify_notifications
			WHERE status IN ('sent', 'failed', 'cancelled') AND created_at < $1
			LIMIT $2
		)
	`, cutoff, batch)
	if err != nil {
		return 0, fmt.Errorf("delete terminal notifications: %w", err)
	}
	return res.RowsAffected()
}

// ReleaseStaleClaims returns rows stuck in sending (a worker died
// mid-send) to pending so the next poll picks them up.
func (r *NotificationStore) ReleaseStaleClaims(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notify_notifications
		SET status = 'pending', last_error = 'released stale claim'
		WHERE status = 'sending' AND last_attempt_at < $1
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("release stale claims: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*domain.NotificationRequest, error) {
	var n domain.NotificationRequest
	var templateData, lastError, providerMsgID, cancelReason sql.NullString
	var lastAttemptAt, sentAt, failedAt, cancelledAt sql.NullTime
	err := row.Scan(&n.ID, &n.Type, &n.Channel, &n.CustomerID, &n.LocationID,
		&n.Email, &n.Phone, &templateData, &n.Subject, &n.Body, &n.DedupeKey,
		&n.EntityID, &n.ScheduledFor, &n.Status, &n.Attempts, &n.MaxAttempts,
		&lastError, &providerMsgID, &n.CreatedAt, &lastAttemptAt, &sentAt,
		&failedAt, &cancelledAt, &cancelReason)
	if err != nil {
		return nil, err
	}
	if templateData.Valid {
		n.TemplateData = []byte(templateData.String)
	}
	n.LastError = lastError.String
	n.ProviderMsgID = providerMsgID.String
	n.CancelReason = cancelReason.String
	n.LastAttemptAt = nullTimePtr(lastAttemptAt)
	n.SentAt = nullTimePtr(sentAt)
	n.FailedAt = nullTimePtr(failedAt)
	n.CancelledAt = nullTimePtr(cancelledAt)
	return &n, nil
}

func scanNotifications(rows *sql.Rows) ([]*domain.NotificationRequest, error) {
	var out []*domain.NotificationRequest
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
