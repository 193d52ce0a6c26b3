package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/bellasuite/notify/internal/domain"
	"github.com/bellasuite/notify/internal/service/consent"
)

// ConsentRepo implements consent.Repository against PostgreSQL.
type ConsentRepo struct{ db *sql.DB }

// NewConsentRepo creates a Postgres-backed consent repository.
func NewConsentRepo(db *sql.DB) *ConsentRepo { return &ConsentRepo{db: db} }

func (r *ConsentRepo) LatestConsent(ctx context.Context, customerID string, channel domain.Channel, ct domain.ConsentType) (*domain.ConsentRecord, error) {
	var rec domain.ConsentRecord
	var sourceIP, userAgent sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, channel, consent_type, consented, source, source_ip, user_agent, created_at
		FROM notify_consents
		WHERE customer_id = $1 AND channel = $2 AND consent_type = $3
		ORDER BY created_at DESC
		LIMIT 1
	`, customerID, channel, ct).Scan(&rec.ID, &rec.CustomerID, &rec.Channel, &rec.Type,
		&rec.Consented, &rec.Source, &sourceIP, &userAgent, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest consent: %w", err)
	}
	rec.SourceIP = sourceIP.String
	rec.UserAgent = userAgent.String
	return &rec, nil
}

func (r *ConsentRepo) InsertConsent(ctx context.Context, rec *domain.ConsentRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notify_consents
			(id, customer_id, channel, consent_type, consented, source, source_ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.ID, rec.CustomerID, rec.Channel, rec.Type, rec.Consented, rec.Source,
		rec.SourceIP, rec.UserAgent, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert consent: %w", err)
	}
	return nil
}

func (r *ConsentRepo) ActiveSuppression(ctx context.Context, email, phone string) (*domain.SuppressionEntry, error) {
	if email == "" && phone == "" {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, phone, type, reason, source, reactivation_token, reactivated_at, created_at
		FROM notify_suppressions
		WHERE reactivated_at IS NULL
		  AND ((email != '' AND email = $1) OR (phone != '' AND phone = $2))
		ORDER BY created_at
		LIMIT 1
	`, email, phone)
	entry, err := scanSuppression(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active suppression: %w", err)
	}
	return entry, nil
}

// Suppress inserts unless an active entry already blocks the same
// identifier; re-suppressing is a no-op and keeps the original row.
func (r *ConsentRepo) Suppress(ctx context.Context, entry *domain.SuppressionEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notify_suppressions
			(id, email, phone, type, reason, source, reactivation_token, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE NOT EXISTS (
			SELECT 1 FROM notify_suppressions
			WHERE reactivated_at IS NULL
			  AND ((email != '' AND email = $2) OR (phone != '' AND phone = $3))
		)
	`, entry.ID, entry.Email, entry.Phone, entry.Type, entry.Reason, entry.Source,
		entry.ReactivationToken, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("suppress: %w", err)
	}
	return nil
}

func (r *ConsentRepo) Reactivate(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notify_suppressions SET reactivated_at = NOW()
		WHERE reactivation_token = $1 AND reactivated_at IS NULL
	`, token)
	if err != nil {
		return fmt.Errorf("reactivate: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return consent.ErrInvalidToken
	}
	return nil
}

func (r *ConsentRepo) ListSuppressions(ctx context.Context, f consent.SuppressionFilter) ([]domain.SuppressionEntry, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	i := 1
	if f.Type != "" {
		where += fmt.Sprintf(" AND type = $%d", i)
		args = append(args, f.Type)
		i++
	}
	if f.Source != "" {
		where += fmt.Sprintf(" AND source = $%d", i)
		args = append(args, f.Source)
		i++
	}
	if f.Search != "" {
		where += fmt.Sprintf(" AND (email ILIKE $%d OR phone ILIKE $%d)", i, i)
		args = append(args, "%"+f.Search+"%")
		i++
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notify_suppressions`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count suppressions: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, email, phone, type, reason, source, reactivation_token, reactivated_at, created_at
		FROM notify_suppressions` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", i, i+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list suppressions: %w", err)
	}
	defer rows.Close()

	var out []domain.SuppressionEntry
	for rows.Next() {
		entry, err := scanSuppression(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan suppression: %w", err)
		}
		out = append(out, *entry)
	}
	return out, total, rows.Err()
}

func scanSuppression(row rowScanner) (*domain.SuppressionEntry, error) {
	var entry domain.SuppressionEntry
	var reason, token sql.NullString
	var reactivatedAt sql.NullTime
	err := row.Scan(&entry.ID, &entry.Email, &entry.Phone, &entry.Type, &reason,
		&entry.Source, &token, &reactivatedAt, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	entry.Reason = reason.String
	entry.ReactivationToken = token.String
	entry.ReactivatedAt = nullTimePtr(reactivatedAt)
	return &entry, nil
}
