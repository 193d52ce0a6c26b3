package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bellasuite/notify/internal/domain"
	"github.com/bellasuite/notify/internal/service/deadletter"
)

// DeadLetterRepo implements deadletter.Repository against PostgreSQL.
type DeadLetterRepo struct{ db *sql.DB }

// NewDeadLetterRepo creates a Postgres-backed dead-letter repository.
func NewDeadLetterRepo(db *sql.DB) *DeadLetterRepo { return &DeadLetterRepo{db: db} }

const deadLetterColumns = `id, notification_id, type, channel, customer_id, recipient,
	subject, body, failure_type, last_error, attempts, retry_eligible, resolved,
	resolved_action, resolved_notes, resolved_by, resolved_at, created_at`

func (r *DeadLetterRepo) GetByID(ctx context.Context, id string) (*domain.DeadLetterItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deadLetterColumns+` FROM notify_dead_letters WHERE id = $1`, id)
	item, err := scanDeadLetter(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dead letter: %w", err)
	}
	return item, nil
}

func (r *DeadLetterRepo) List(ctx context.Context, f deadletter.Filter) ([]*domain.DeadLetterItem, error) {
	query := `SELECT ` + deadLetterColumns + ` FROM notify_dead_letters WHERE 1=1`
	args := []interface{}{}
	i := 1
	if f.FailureType != "" {
		query += fmt.Sprintf(" AND failure_type = $%d", i)
		args = append(args, f.FailureType)
		i++
	}
	if f.Channel != "" {
		query += fmt.Sprintf(" AND channel = $%d", i)
		args = append(args, f.Channel)
		i++
	}
	if f.Resolved != nil {
		query += fmt.Sprintf(" AND resolved = $%d", i)
		args = append(args, *f.Resolved)
		i++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", i, i+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var out []*domain.DeadLetterItem
	for rows.Next() {
		item, err := scanDeadLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *DeadLetterRepo) MarkResolved(ctx context.Context, id string, action domain.ResolutionAction, notes, actor string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notify_dead_letters
		SET resolved = true, resolved_action = $2, resolved_notes = $3, resolved_by = $4, resolved_at = $5
		WHERE id = $1 AND resolved = false
	`, id, action, notes, actor, at)
	if err != nil {
		return false, fmt.Errorf("mark resolved: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *DeadLetterRepo) Stats(ctx context.Context) (*deadletter.Stats, error) {
	s := &deadletter.Stats{
		ByFailureType: make(map[domain.FailureType]int),
		ByChannel:     make(map[domain.Channel]int),
	}
	var resolved int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE resolved = false),
		       COUNT(*) FILTER (WHERE resolved = true),
		       COUNT(*) FILTER (WHERE created_at > NOW() - INTERVAL '24 hours')
		FROM notify_dead_letters
	`).Scan(&s.Total, &s.Unresolved, &resolved, &s.RecentCount)
	if err != nil {
		return nil, fmt.Errorf("dead letter totals: %w", err)
	}
	if s.Total > 0 {
		s.ResolutionRate = float64(resolved) / float64(s.Total)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT failure_type, channel, COUNT(*) FROM notify_dead_letters GROUP BY failure_type, channel`)
	if err != nil {
		return nil, fmt.Errorf("dead letter breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ft domain.FailureType
		var ch domain.Channel
		var count int
		if err := rows.Scan(&ft, &ch, &count); err != nil {
			return nil, fmt.Errorf("scan breakdown: %w", err)
		}
		s.ByFailureType[ft] += count
		s.ByChannel[ch] += count
	}
	return s, rows.Err()
}

func (r *DeadLetterRepo) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notify_dead_letters WHERE resolved = true AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete resolved dead letters: %w", err)
	}
	return res.RowsAffected()
}

func scanDeadLetter(row rowScanner) (*domain.DeadLetterItem, error) {
	var item domain.DeadLetterItem
	var subject, body, lastError, action, notes, by sql.NullString
	var resolvedAt sql.NullTime
	err := row.Scan(&item.ID, &item.NotificationID, &item.Type, &item.Channel,
		&item.CustomerID, &item.Recipient, &subject, &body, &item.FailureType,
		&lastError, &item.Attempts, &item.RetryEligible, &item.Resolved,
		&action, &notes, &by, &resolvedAt, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	item.Subject = subject.String
	item.Body = body.String
	item.LastError = lastError.String
	item.ResolvedAction = domain.ResolutionAction(action.String)
	item.ResolvedNotes = notes.String
	item.ResolvedBy = by.String
	item.ResolvedAt = nullTimePtr(resolvedAt)
	return &item, nil
}
